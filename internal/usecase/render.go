package usecase

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"ArticlesBot/internal/domain"
)

// Action tokens are embedded in sent messages and must stay stable.
const (
	ActionList              = "get_articles"
	ActionSearch            = "search_article"
	ActionHistory           = "status_history"
	ActionAdminPanel        = "more_options"
	ActionAddEditor         = "add_editor"
	ActionRemoveEditor      = "remove_editor"
	ActionListEditors       = "list_editors"
	ActionSortMenu          = "sort"
	ActionSortAsc           = "sort_asc"
	ActionSortDesc          = "sort_desc"
	ActionFilterMenu        = "filter"
	ActionFilterAll         = "filter_all"
	ActionFilterPrefix      = "filter_"
	ActionPrev              = "prev"
	ActionNext              = "next"
	ActionNoop              = "no_op"
	ActionBackToMenu        = "back_to_menu"
	ActionStartPrefix       = "start_"
	ActionDonePrefix        = "done_"
	ActionReviewPrefix      = "review_"
	ActionHistoryPagePrefix = "history_page_"
)

// ArticleRefPrefix starts an article reference such as /article123.
const ArticleRefPrefix = "/article"

// CommandStart opens the main menu.
const CommandStart = "start"

const (
	textAccessDenied    = "⛔️ <b><i>У вас нет доступа к данному боту! Обратитесь к заказчику!</i></b>"
	textMainMenu        = "<b>📋 Главное меню</b>"
	textListingHeader   = "📋 <b>Список статей:</b>\n\n"
	textListingEmpty    = "<i>Статей не найдено.</i>"
	textSortMenu        = "📑 <b>Выберите способ сортировки:</b>"
	textFilterMenu      = "🗂 <b>Выберите статус:</b>"
	textSearchPrompt    = "✍️ <b>Введите номер статьи:</b>"
	textInvalidArticle  = "❌ <i>Пожалуйста, введите корректный номер статьи.</i>"
	textArticleNotFound = "❌ <i>Статья с таким номером не найдена.</i>"
	textBadReference    = "❌ <i>Неверный формат команды. Введите номер статьи после команды /article.</i>"
	textGenericFailure  = "⚠️ <i>Не удалось выполнить операцию. Попробуйте позже.</i>"
	textHistoryHeader   = "📃 <b>История статей:</b>\n\n"
	textHistoryEmpty    = "У вас нет изменений в статьях."
	textAdminPanel      = "📃 <b>Выберите опцию:</b>"
	textAddPrompt       = "✍️ <b>Введите ID пользователя для добавления в редакторы:</b>"
	textRemovePrompt    = "✍️ <b>Введите ID пользователя для удаления из редакторов:</b>"
	textInvalidUserID   = "⛔️ <b>Введите корректный ID пользователя.</b>"
	textAlreadyEditor   = "⛔️ <b>Этот пользователь уже является редактором.</b>"
	textNotEditor       = "⛔️ <b>Пользователь с таким ID не найден среди редакторов.</b>"
	textEditorsHeader   = "👥 <b>Список редакторов:</b>\n\n"
	textEditorsEmpty    = "<i>Редакторов пока нет.</i>"
)

func mainMenu(admin bool) domain.Message {
	kb := domain.Keyboard{
		{{Text: "📕 Список статей", Action: ActionList}},
		{{Text: "🔎 Поиск статьи", Action: ActionSearch}},
		{{Text: "📃 История статей", Action: ActionHistory}},
	}
	if admin {
		kb = append(kb, []domain.Button{{Text: "➕ Панель администратора", Action: ActionAdminPanel}})
	}
	return domain.Message{Text: textMainMenu, Keyboard: kb}
}

// ArticleRef renders the reference token of an article.
func ArticleRef(id int64) string {
	return ArticleRefPrefix + strconv.FormatInt(id, 10)
}

func listingMessage(window []domain.Article, page, numPages int) domain.Message {
	var b strings.Builder
	b.WriteString(textListingHeader)
	if len(window) == 0 {
		b.WriteString(textListingEmpty)
	}
	for i, article := range window {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<b><i>%s - %s</i></b>", ArticleRef(article.ID), article.Status)
	}

	prev := domain.Button{Text: "◀️", Action: ActionNoop}
	if page > 1 {
		prev.Action = ActionPrev
	}
	next := domain.Button{Text: "▶️", Action: ActionNoop}
	if page < numPages {
		next.Action = ActionNext
	}
	label := domain.Button{Text: fmt.Sprintf("%d/%d", page, numPages), Action: ActionNoop}

	return domain.Message{
		Text: b.String(),
		Keyboard: domain.Keyboard{
			{prev, label, next},
			{{Text: "📑 Сортировка", Action: ActionSortMenu}},
			{{Text: "🗂 Фильтр", Action: ActionFilterMenu}},
			{{Text: "🔎 Найти статью", Action: ActionSearch}},
		},
	}
}

func sortMenu() domain.Message {
	return domain.Message{
		Text: textSortMenu,
		Keyboard: domain.Keyboard{
			{{Text: "По возрастанию 🔼", Action: ActionSortAsc}},
			{{Text: "По убыванию 🔽", Action: ActionSortDesc}},
		},
	}
}

func filterMenu() domain.Message {
	kb := make(domain.Keyboard, 0, len(domain.ListedStatuses)+1)
	for _, status := range domain.ListedStatuses {
		kb = append(kb, []domain.Button{{Text: string(status), Action: ActionFilterPrefix + string(status)}})
	}
	kb = append(kb, []domain.Button{{Text: "Все статусы", Action: ActionFilterAll}})
	return domain.Message{Text: textFilterMenu, Keyboard: kb}
}

func searchPrompt() domain.Message {
	return domain.Message{
		Text:     textSearchPrompt,
		Keyboard: domain.Keyboard{{{Text: "◀️ Назад", Action: ActionBackToMenu}}},
	}
}

func statusKeyboard(id int64) domain.Keyboard {
	suffix := strconv.FormatInt(id, 10)
	return domain.Keyboard{
		{
			{Text: "Начал ✅", Action: ActionStartPrefix + suffix},
			{Text: "Закончил 🔒", Action: ActionDonePrefix + suffix},
		},
		{{Text: "На проверке 🛠", Action: ActionReviewPrefix + suffix}},
	}
}

func articleCard(article domain.Article, links domain.Links) domain.Message {
	external := html.EscapeString(links.External)
	internal := html.EscapeString(links.Internal)
	text := fmt.Sprintf("📄 <b>Статья:</b> <code>%d</code>\n"+
		"ℹ️ <b>Статус:</b> <code>%s</code>\n\n"+
		"🔗 <b>Внешняя ссылка:</b> <a href='%s'>%s</a>\n"+
		"🔗 <b>Внутренняя ссылка:</b> <i><a href='%s'>Редактировать</a></i>",
		article.ID, article.Status, external, external, internal)
	return domain.Message{Text: text, Keyboard: statusKeyboard(article.ID), DisablePreview: true}
}

func articleFound(article domain.Article) string {
	return fmt.Sprintf("✅ <b>Статья найдена:</b>\n\n<b><i>%s - %s</i></b>", ArticleRef(article.ID), article.Status)
}

func statusChangedText(id int64, status domain.ArticleStatus) string {
	return fmt.Sprintf("<b>Статус статьи <code>%d</code> изменён на <code>%s</code>.</b>", id, status)
}

func statusChangedNotice(id int64, status domain.ArticleStatus) string {
	return fmt.Sprintf("📝 Статус статьи %d изменён на %s.", id, status)
}

func statusConfirmation(id int64, status domain.ArticleStatus) string {
	return fmt.Sprintf("📝 <b>Статус статьи %d изменён на <code>%s</code>.</b>", id, status)
}

func statusNotAssigned(id int64) string {
	return fmt.Sprintf("❌ <i>Статья %d не найдена или не закреплена за вами.</i>", id)
}

func adminStatusNotice(id int64, status domain.ArticleStatus, actor domain.Principal) string {
	return fmt.Sprintf("📝 <b>Статус статьи %d изменён на <code>%s</code></b>\n\n"+
		"<b>👤 Редактировал:</b>\n"+
		"<b>└ ID: <code>%d</code>\n"+
		"└ Username: @%s\n"+
		"└ Name: %s</b>",
		id, status, actor.ID, html.EscapeString(actor.Handle), html.EscapeString(actor.Name))
}

func historyMessage(entries []domain.HistoryEntry, offset, limit, total int) domain.Message {
	if len(entries) == 0 {
		return domain.Message{Text: textHistoryEmpty}
	}

	var b strings.Builder
	b.WriteString(textHistoryHeader)
	for i, entry := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<b>Статья:</b> <code>%d</code> - <b>Статус:</b> <code>%s</code>", entry.ArticleID, entry.Status)
	}

	var kb domain.Keyboard
	if offset > 0 {
		prev := max(offset-limit, 0)
		kb = append(kb, []domain.Button{{Text: "⬅️", Action: ActionHistoryPagePrefix + strconv.Itoa(prev)}})
	}
	if offset+limit < total {
		label := "➡️"
		if offset == 0 {
			label = "➡️ Следующая страница"
		}
		kb = append(kb, []domain.Button{{Text: label, Action: ActionHistoryPagePrefix + strconv.Itoa(offset+limit)}})
	}
	return domain.Message{Text: b.String(), Keyboard: kb}
}

func adminPanel() domain.Message {
	return domain.Message{
		Text: textAdminPanel,
		Keyboard: domain.Keyboard{
			{{Text: "➕ Добавить редактора", Action: ActionAddEditor}},
			{{Text: "➖ Удалить редактора", Action: ActionRemoveEditor}},
			{{Text: "👥 Список редакторов", Action: ActionListEditors}},
		},
	}
}

func editorAdded(id int64) string {
	return fmt.Sprintf("✅ <b>Пользователь с ID %d добавлен в редакторы.</b>", id)
}

func editorRemoved(id int64) string {
	return fmt.Sprintf("✅ <b>Пользователь с ID %d удален из редакторов.</b>", id)
}

func editorsMessage(editors []domain.Editor) domain.Message {
	if len(editors) == 0 {
		return domain.Message{Text: textEditorsHeader + textEditorsEmpty}
	}
	var b strings.Builder
	b.WriteString(textEditorsHeader)
	for _, e := range editors {
		fmt.Fprintf(&b, "🆔: <code>%d</code>, Имя: <code>%s</code>, @%s\n", e.ID, html.EscapeString(e.Name), html.EscapeString(e.Handle))
	}
	return domain.Message{Text: b.String()}
}
