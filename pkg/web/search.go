package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/paging"
)

// SearchQP - параметр строки поиска.
const SearchQP = "q"

type searchContent struct {
	Query  string
	Posts  []domain.Post
	Page   int
	More   string
	Empty  string
	Failed string
}

// handleSearch ищет публикации. Пустой запрос к API не отправляется.
func (app *App) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pg := paging.Pagination(q, paging.PageSize, paging.PageQP)
	c := searchContent{Query: strings.TrimSpace(q.Get(SearchQP)), Page: pg.Page}
	code := http.StatusOK

	if c.Query == "" {
		c.Empty = "No results found."
		app.render(w, "search", app.newPage(r, "Search | Hacker News", c), code)
		return
	}

	posts, err := app.api.Search(r.Context(), credentials(r), c.Query, paging.PageSize, pg.Skip)
	switch {
	case err != nil:
		if app.expired(w, r, err) {
			return
		}
		c.Failed = backend.Message(err, "Failed to fetch search results.")
		code = errorCode(err)
	case len(posts) == 0:
		c.Empty = "No results found."
	default:
		v := url.Values{}
		v.Set(SearchQP, c.Query)
		v.Set(paging.PageQP, strconv.Itoa(pg.Page+1))
		c.More = "/search?" + v.Encode()
	}
	c.Posts = posts

	p := app.newPage(r, c.Query+" | Search | Hacker News", c)
	p.Query = c.Query
	app.render(w, "search", p, code)
}
