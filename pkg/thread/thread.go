// пакет thread раскладывает дерево комментариев в строки
// для вывода в шаблоне с учетом состояния каждого узла.
package thread

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rtemka/hnfront/domain"
)

// MaxDepth - глубина, начиная с которой ответы не выводятся
// внутри ветки, а ссылка "reply" скрывается.
const MaxDepth = 5

// IndentPx - отступ одного уровня вложенности.
const IndentPx = 40

// Set - множество id комментариев (например, свернутых).
type Set map[int64]bool

// ParseSet разбирает список id через запятую. Мусор пропускается.
func ParseSet(s string) Set {
	set := make(Set)
	for _, f := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		set[id] = true
	}
	return set
}

// String возвращает упорядоченный список id через запятую.
func (s Set) String() string {
	ids := make([]int64, 0, len(s))
	for id, ok := range s {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}

// ToggleCollapse возвращает копию множества, в которой
// id свернут, если был развернут, и наоборот.
func ToggleCollapse(s Set, id int64) Set {
	out := make(Set, len(s)+1)
	for k, v := range s {
		if v {
			out[k] = true
		}
	}
	if out[id] {
		delete(out, id)
	} else {
		out[id] = true
	}
	return out
}

// State - состояние отображения ветки, получаемое из строки запроса.
type State struct {
	Edit      int64 // комментарий в режиме редактирования
	Delete    int64 // комментарий, ожидающий подтверждения удаления
	Collapsed Set
	Votes     map[int64]int // голоса зрителя по id комментария
}

// Viewer - тот, кто смотрит страницу.
type Viewer struct {
	LoggedIn bool
	UserID   int64
}

// Row - строка таблицы комментариев.
type Row struct {
	Comment domain.Comment
	Depth   int
	Indent  int

	CanReply      bool
	CanEdit       bool
	CanDelete     bool
	Editing       bool
	ConfirmDelete bool

	Vote       int
	ShowUpvote bool
	ShowUnvote bool

	Collapsed bool
	Hidden    int // ответов скрыто сворачиванием

	MoreReplies int // ответов глубже MaxDepth
	Toggle      string
}

// Render обходит дерево в глубину и возвращает строки для вывода.
func Render(forest []domain.Comment, st State, v Viewer) []Row {
	var rows []Row
	walk(forest, 0, st, v, &rows)
	return rows
}

func walk(cs []domain.Comment, depth int, st State, v Viewer, rows *[]Row) {
	for i := range cs {
		c := cs[i]
		own := v.LoggedIn && v.UserID != 0 && c.UserID == v.UserID && !c.IsDeleted

		r := Row{
			Comment:   c,
			Depth:     depth,
			Indent:    depth * IndentPx,
			CanReply:  depth < MaxDepth && !c.IsDeleted,
			CanEdit:   own,
			CanDelete: own,
			Vote:      st.Votes[c.ID],
			Collapsed: st.Collapsed[c.ID],
			Toggle:    ToggleCollapse(st.Collapsed, c.ID).String(),
		}
		r.Editing = own && st.Edit == c.ID
		r.ConfirmDelete = own && st.Delete == c.ID && !r.Editing
		r.ShowUpvote = !c.IsDeleted && r.Vote != 1
		r.ShowUnvote = !c.IsDeleted && r.Vote != 0

		switch {
		case r.Collapsed:
			r.Hidden = domain.Descendants(c)
		case depth >= MaxDepth:
			r.MoreReplies = domain.Descendants(c)
		}

		r.Comment.Replies = nil
		*rows = append(*rows, r)

		if !r.Collapsed && depth < MaxDepth {
			walk(c.Replies, depth+1, st, v, rows)
		}
	}
}
