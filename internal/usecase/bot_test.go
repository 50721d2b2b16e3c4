package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArticlesBot/internal/conversation"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

func TestUnauthorizedPrincipalIsDenied(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(1, outsider, domain.StatusStarted)
	surface := domain.Surface{ChatID: outsider, MessageID: 5}

	for _, token := range []string{ActionList, ActionSearch, ActionHistory, "start_1", ActionAdminPanel} {
		h.press(outsider, token, surface)
	}
	h.bot.HandleCommand(context.Background(), domain.Command{Name: CommandStart, ChatID: outsider, Principal: principal(outsider)})

	msgs := h.messenger.sentTo(outsider)
	require.Len(t, msgs, 6)
	for _, msg := range msgs {
		assert.Equal(t, textAccessDenied, msg.Text)
	}
	assert.Len(t, h.messenger.answers, 5)
	assert.Equal(t, domain.StatusStarted, h.repo.rows[1].status)
	assert.Equal(t, conversation.Idle, h.machine.Current(context.Background(), outsider))
}

func TestEditorCannotOpenAdminActions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	surface := domain.Surface{ChatID: editorID, MessageID: 5}
	h.press(editorID, ActionAddEditor, surface)

	assert.Equal(t, textAccessDenied, h.messenger.last(editorID).Text)
	assert.Equal(t, conversation.Idle, h.machine.Current(context.Background(), editorID))
}

func TestStartCommandShowsMenuByRole(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	h.bot.HandleCommand(ctx, domain.Command{Name: CommandStart, ChatID: editorID, Principal: principal(editorID)})
	h.bot.HandleCommand(ctx, domain.Command{Name: CommandStart, ChatID: adminID, Principal: principal(adminID)})

	assert.Len(t, h.messenger.last(editorID).Keyboard, 3)
	admin := h.messenger.last(adminID)
	require.Len(t, admin.Keyboard, 4)
	assert.Equal(t, ActionAdminPanel, admin.Keyboard[3][0].Action)
}

func TestUnknownActionIsStillAnswered(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.press(editorID, "definitely_unknown", domain.Surface{ChatID: editorID, MessageID: 1})
	h.press(editorID, ActionNoop, domain.Surface{ChatID: editorID, MessageID: 1})

	assert.Len(t, h.messenger.answers, 2)
	assert.Empty(t, h.messenger.sentTo(editorID))
}

func TestSearchPromptConsumesExactlyOneMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(5, editorID, domain.StatusDone)
	surface := domain.Surface{ChatID: editorID, MessageID: 3}

	h.press(editorID, ActionSearch, surface)
	assert.Equal(t, conversation.AwaitingArticleNumber, h.machine.Current(context.Background(), editorID))
	assert.Equal(t, textSearchPrompt, h.messenger.last(editorID).Text)

	h.text(editorID, "abc")
	assert.Equal(t, textInvalidArticle, h.messenger.last(editorID).Text)
	assert.Equal(t, conversation.Idle, h.machine.Current(context.Background(), editorID))

	before := len(h.messenger.sentTo(editorID))
	h.text(editorID, "5")
	assert.Len(t, h.messenger.sentTo(editorID), before, "an unprompted number is not a search")
}

func TestSearchResults(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(5, editorID, domain.StatusDone)
	surface := domain.Surface{ChatID: editorID, MessageID: 3}

	h.press(editorID, ActionSearch, surface)
	h.text(editorID, " 5 ")
	assert.Contains(t, h.messenger.last(editorID).Text, "/article5 - DONE")

	h.press(editorID, ActionSearch, surface)
	h.text(editorID, "6")
	assert.Equal(t, textArticleNotFound, h.messenger.last(editorID).Text)
}

func TestBackToMenuOnlyLeavesSearch(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(1, editorID, domain.StatusStarted)
	prompt := domain.Surface{ChatID: editorID, MessageID: 9}

	h.press(editorID, ActionBackToMenu, prompt)
	assert.Empty(t, h.messenger.sentTo(editorID), "inert outside the search prompt")

	h.press(editorID, ActionSearch, prompt)
	promptMsg := h.messenger.sent[len(h.messenger.sent)-1].Surface
	h.press(editorID, ActionBackToMenu, promptMsg)

	assert.Equal(t, conversation.Idle, h.machine.Current(context.Background(), editorID))
	assert.Contains(t, h.messenger.deleted, promptMsg)
	assert.Contains(t, h.messenger.last(editorID).Text, textListingHeader)
}

func TestArticleReference(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(12, editorID, domain.StatusStarted)
	h.repo.links[12] = domain.Links{External: "https://donor.example/12?a=1&b=2", Internal: "https://cms.example/12"}

	h.text(editorID, "/article12")
	card := h.messenger.last(editorID)
	assert.Contains(t, card.Text, "<code>12</code>")
	assert.Contains(t, card.Text, "a=1&amp;b=2")
	assert.True(t, card.DisablePreview)
	assert.Equal(t, "start_12", card.Keyboard[0][0].Action)
	assert.Equal(t, "done_12", card.Keyboard[0][1].Action)
	assert.Equal(t, "review_12", card.Keyboard[1][0].Action)

	h.text(editorID, "/articlexyz")
	assert.Equal(t, textBadReference, h.messenger.last(editorID).Text)

	h.text(editorID, "/article13")
	assert.Equal(t, textArticleNotFound, h.messenger.last(editorID).Text)
}

func TestChangeStatusIsUnconditional(t *testing.T) {
	t.Parallel()

	h := newHarness(t, adminID, 2)
	h.repo.seed(7, editorID, domain.StatusNotStarted)
	ctx := context.Background()
	card, err := h.messenger.SendMessage(ctx, editorID, articleCard(domain.Article{ID: 7, Status: domain.StatusNotStarted}, domain.Links{}))
	require.NoError(t, err)

	tr, err := h.bot.ChangeStatus(ctx, principal(editorID), card, 7, domain.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, DeliveryEdited, tr.Delivery)
	assert.Equal(t, []int64{adminID, 2}, tr.Report.Delivered)
	assert.Empty(t, tr.Report.Failed)

	tr, err = h.bot.ChangeStatus(ctx, principal(editorID), card, 7, domain.StatusStarted)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, tr.Change.Status)
	assert.Equal(t, domain.StatusStarted, h.repo.rows[7].status)

	assert.Equal(t, statusConfirmation(7, domain.StatusStarted), h.messenger.last(editorID).Text)
	assert.Contains(t, h.messenger.last(2).Text, "@user")
	assert.Equal(t, []string{ports.TopicStatusChanged, ports.TopicStatusChanged}, h.publisher.topics())

	edited := h.messenger.edits[len(h.messenger.edits)-1].Msg
	assert.Equal(t, statusChangedText(7, domain.StatusStarted), edited.Text)
	assert.Equal(t, statusKeyboard(7), edited.Keyboard)
}

func TestStatusPressAnswersAndFallsBackToSend(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(7, editorID, domain.StatusNotStarted)
	h.messenger.editErr = errors.New("Bad Request: message can't be edited")
	card := domain.Surface{ChatID: editorID, MessageID: 40}

	h.press(editorID, "review_7", card)

	assert.Equal(t, []string{statusChangedNotice(7, domain.StatusReview)}, h.messenger.answers)
	msgs := h.messenger.sentTo(editorID)
	require.Len(t, msgs, 2)
	assert.Equal(t, statusChangedText(7, domain.StatusReview), msgs[0].Text)
	assert.Equal(t, statusConfirmation(7, domain.StatusReview), msgs[1].Text)
}

func TestStatusPressResendsCardWhenEditIsNotModified(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(7, editorID, domain.StatusDone)
	h.messenger.editErr = fmt.Errorf("edit message: %w", ports.ErrMessageNotModified)
	card := domain.Surface{ChatID: editorID, MessageID: 40}

	tr, err := h.bot.ChangeStatus(context.Background(), principal(editorID), card, 7, domain.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, tr.Delivery)

	msgs := h.messenger.sentTo(editorID)
	require.Len(t, msgs, 2)
	assert.Equal(t, statusChangedText(7, domain.StatusDone), msgs[0].Text)
	assert.Equal(t, statusKeyboard(7), msgs[0].Keyboard)
	assert.Equal(t, statusConfirmation(7, domain.StatusDone), msgs[1].Text)
}

func TestStatusPressOnUnassignedArticle(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(7, 555, domain.StatusStarted)
	h.press(editorID, "done_7", domain.Surface{ChatID: editorID, MessageID: 40})

	assert.Equal(t, statusNotAssigned(7), h.messenger.last(editorID).Text)
	assert.Empty(t, h.messenger.sentTo(adminID))
	assert.Empty(t, h.publisher.topics())
}

func TestStatusWriteFailureIsGeneric(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.repo.seed(7, editorID, domain.StatusStarted)
	h.repo.updateErr = errors.New("connection refused")
	h.press(editorID, "done_7", domain.Surface{ChatID: editorID, MessageID: 40})

	assert.Equal(t, textGenericFailure, h.messenger.last(editorID).Text)
}

func TestNotifyAdminsIsolatesFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, 2, 3)
	h.messenger.sendErr[2] = errBlocked

	report := h.bot.NotifyAdmins(context.Background(), "hello")
	assert.Equal(t, []int64{1, 3}, report.Delivered)
	assert.Equal(t, []int64{2}, report.Failed)
	assert.Len(t, h.messenger.sentTo(1), 1)
	assert.Len(t, h.messenger.sentTo(3), 1)
}

func TestAddEditorFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	panel := domain.Surface{ChatID: adminID, MessageID: 2}

	h.press(adminID, ActionAddEditor, panel)
	assert.Equal(t, conversation.AwaitingNewEditorID, h.machine.Current(context.Background(), adminID))
	h.text(adminID, "555")
	assert.Equal(t, editorAdded(555), h.messenger.last(adminID).Text)
	assert.True(t, h.directory.IsEditor(555))

	list, err := h.directory.ListEditors()
	require.NoError(t, err)
	assert.Contains(t, list, domain.Editor{ID: 555, Name: domain.PlaceholderName, Handle: domain.PlaceholderHandle})

	h.press(adminID, ActionAddEditor, panel)
	h.text(adminID, "555")
	assert.Equal(t, textAlreadyEditor, h.messenger.last(adminID).Text)
	assert.Equal(t, []string{ports.TopicEditorAdded}, h.publisher.topics())
}

func TestAddEditorRejectsMalformedIDAndEndsPrompt(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.press(adminID, ActionAddEditor, domain.Surface{ChatID: adminID, MessageID: 2})
	h.text(adminID, "five")

	assert.Equal(t, textInvalidUserID, h.messenger.last(adminID).Text)
	assert.Equal(t, conversation.Idle, h.machine.Current(context.Background(), adminID))
}

func TestRemoveEditorFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	panel := domain.Surface{ChatID: adminID, MessageID: 2}

	h.press(adminID, ActionRemoveEditor, panel)
	h.text(adminID, "424242")
	assert.Equal(t, textNotEditor, h.messenger.last(adminID).Text)

	h.press(adminID, ActionRemoveEditor, panel)
	h.text(adminID, "100")
	assert.Equal(t, editorRemoved(editorID), h.messenger.last(adminID).Text)

	h.press(editorID, ActionList, domain.Surface{ChatID: editorID, MessageID: 1})
	assert.Equal(t, textAccessDenied, h.messenger.last(editorID).Text, "revocation applies to the next request")
}

func TestPromptRechecksAdminOnCompletion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.machine.Begin(context.Background(), editorID, conversation.AwaitingNewEditorID)
	h.text(editorID, "555")

	assert.Equal(t, textAccessDenied, h.messenger.last(editorID).Text)
	assert.False(t, h.directory.IsEditor(555))
}

func TestListEditors(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	panel, err := h.messenger.SendMessage(ctx, adminID, adminPanel())
	require.NoError(t, err)

	h.press(adminID, ActionListEditors, panel)

	assert.Contains(t, h.messenger.deleted, panel)
	assert.Contains(t, h.messenger.last(adminID).Text, "🆔: <code>100</code>, Имя: <code>Editor</code>, @editor")
}

func TestHistoryPages(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()
	for id := int64(1); id <= 7; id++ {
		h.repo.seed(id, editorID, domain.StatusNotStarted)
		require.NoError(t, h.repo.UpdateStatus(ctx, id, editorID, domain.StatusStarted))
	}
	require.NoError(t, h.repo.UpdateStatus(ctx, 1, editorID, domain.StatusReview))

	first := h.bot.ShowHistory(ctx, editorID, domain.Surface{ChatID: editorID, MessageID: 1}, 0)
	require.Len(t, first.Keyboard, 1)
	assert.Equal(t, "history_page_5", first.Keyboard[0][0].Action)
	assert.Equal(t, "➡️ Следующая страница", first.Keyboard[0][0].Text)

	h.press(editorID, "history_page_5", domain.Surface{ChatID: editorID, MessageID: 2})
	second := h.messenger.last(editorID)
	require.Len(t, second.Keyboard, 1)
	assert.Equal(t, "history_page_0", second.Keyboard[0][0].Action)
	assert.NotContains(t, second.Text, "REVIEW")

	empty := h.bot.ShowHistory(ctx, adminID, domain.Surface{ChatID: adminID, MessageID: 1}, 0)
	assert.Equal(t, textHistoryEmpty, empty.Text)
}

func TestEventsForOnePrincipalAreSerialized(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	seedMany(h, 30)
	ctx := context.Background()
	_, err := h.bot.StartListing(ctx, editorID, editorID)
	require.NoError(t, err)
	surface := *h.sessions.Get(ctx, editorID).Surface

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.press(editorID, ActionNext, surface)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, h.sessions.Get(ctx, editorID).Page)
	assert.Zero(t, h.bot.locks.size())
}

func TestKeyedLockerBlocksSameKeyOnly(t *testing.T) {
	t.Parallel()

	locks := newKeyedLocker()
	unlock := locks.Lock(1)

	otherDone := make(chan struct{})
	go func() {
		locks.Lock(2)()
		close(otherDone)
	}()
	select {
	case <-otherDone:
	case <-time.After(time.Second):
		t.Fatal("different key blocked")
	}

	sameDone := make(chan struct{})
	go func() {
		locks.Lock(1)()
		close(sameDone)
	}()
	select {
	case <-sameDone:
		t.Fatal("same key did not block")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-sameDone
	assert.Zero(t, locks.size())
}
