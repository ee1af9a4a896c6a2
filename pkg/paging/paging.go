// пакет paging разбирает параметры постраничного вывода
// и сортировки из строки запроса.
package paging

import (
	"net/url"
	"strconv"
)

// размеры страниц.
const (
	PageSize          = 30
	NotificationsSize = 50
)

// параметры запроса.
const (
	PageQP = "p"
	SortQP = "sort"
)

// варианты сортировки ленты.
const (
	SortNew  = "new"
	SortTop  = "top"
	SortBest = "best"
)

// Params - номер страницы и смещение для запроса к API.
type Params struct {
	Page int
	Skip int
}

// Page возвращает номер страницы из параметра name (по умолчанию "p").
// Нечисловые значения и значения меньше 1 приводятся к 1.
func Page(q url.Values, name string) int {
	if name == "" {
		name = PageQP
	}
	p, err := strconv.Atoi(q.Get(name))
	if err != nil || p < 1 {
		return 1
	}
	return p
}

// Pagination возвращает страницу и смещение.
func Pagination(q url.Values, perPage int, name string) Params {
	p := Page(q, name)
	return Params{Page: p, Skip: (p - 1) * perPage}
}

// Sort возвращает допустимую сортировку или def.
func Sort(q url.Values, def string) string {
	switch s := q.Get(SortQP); s {
	case SortNew, SortTop, SortBest:
		return s
	default:
		return def
	}
}

// PostType возвращает допустимый тип публикации или "".
func PostType(s string) string {
	switch s {
	case "story", "ask", "show", "job":
		return s
	default:
		return ""
	}
}

// Rank - порядковый номер элемента в ленте, начиная с 1.
func Rank(page, perPage, index int) int {
	if page < 1 {
		page = 1
	}
	return (page-1)*perPage + index + 1
}

// MoreLink - ссылка на следующую страницу.
// Сортировка добавляется, только если она отличается от def.
func MoreLink(path string, page int, sort, def string) string {
	q := url.Values{}
	q.Set(PageQP, strconv.Itoa(page+1))
	link := path + "?" + q.Encode()
	if sort != "" && sort != def {
		link += "&" + SortQP + "=" + url.QueryEscape(sort)
	}
	return link
}
