package web

import (
	"net/http"

	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/paging"
)

// DefaultSort - сортировка лент по умолчанию.
const DefaultSort = paging.SortNew

type feedContent struct {
	Posts    []domain.Post
	Page     int
	More     string
	Empty    string
	Failed   string
	PostType string
}

var feedTitles = map[string]string{
	domain.TypeAsk:  "Ask",
	domain.TypeShow: "Show",
	domain.TypeJob:  "Jobs",
}

// emptyFeed - сообщение для пустой ленты.
func emptyFeed(postType string, page int) string {
	var what string
	switch postType {
	case domain.TypeJob:
		what = "job listings"
	case domain.TypeAsk:
		what = "ask posts"
	case domain.TypeShow:
		what = "show posts"
	default:
		what = "posts"
	}
	if page > 1 {
		return "No more " + what + "."
	}
	return "No " + what + " found."
}

// handleFeed выводит ленту публикаций типа postType.
func (app *App) handleFeed(postType, path string) http.HandlerFunc {
	title := "Hacker News"
	if t, ok := feedTitles[postType]; ok {
		title = t + " | Hacker News"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pg := paging.Pagination(q, paging.PageSize, paging.PageQP)
		sort := paging.Sort(q, DefaultSort)

		c := feedContent{Page: pg.Page, PostType: postType}

		posts, err := app.api.Posts(r.Context(), credentials(r), backend.ListParams{
			Sort:     sort,
			PostType: postType,
			Limit:    paging.PageSize,
			Skip:     pg.Skip,
		})
		if err != nil {
			if app.expired(w, r, err) {
				return
			}
			c.Failed = backend.Message(err, "Failed to fetch posts.")
		}

		c.Posts = posts
		switch {
		case len(posts) > 0:
			c.More = paging.MoreLink(path, pg.Page, sort, DefaultSort)
		case err == nil:
			c.Empty = emptyFeed(postType, pg.Page)
		}

		code := http.StatusOK
		if err != nil {
			code = errorCode(err)
		}
		app.render(w, "feed", app.newPage(r, title, c), code)
	}
}
