package web

import (
	"net/http"
	"strconv"

	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/paging"
)

type recentRow struct {
	Comment    domain.Comment
	ShowUpvote bool
	ShowUnvote bool
}

type recentContent struct {
	Rows   []recentRow
	More   string
	Empty  string
	Failed string
}

// handleRecentComments выводит последние комментарии сайта
// с голосами пользователя.
func (app *App) handleRecentComments(w http.ResponseWriter, r *http.Request) {
	pg := paging.Pagination(r.URL.Query(), paging.PageSize, paging.PageQP)
	a := credentials(r)
	_, loggedIn := current(r)

	var c recentContent
	code := http.StatusOK

	comments, err := app.api.RecentComments(r.Context(), a, paging.PageSize, pg.Skip)
	if err != nil {
		if app.expired(w, r, err) {
			return
		}
		c.Failed = backend.Message(err, "Failed to fetch comments.")
		code = errorCode(err)
	}

	votes := map[int64]int{}
	if loggedIn && len(comments) > 0 {
		ids := make([]int64, 0, len(comments))
		for i := range comments {
			ids = append(ids, comments[i].ID)
		}
		// без голосов страница выводится как для гостя
		if v, err := app.api.CommentVotes(r.Context(), a, ids); err == nil {
			votes = v
		} else if app.expired(w, r, err) {
			return
		}
	}

	for i := range comments {
		cm := comments[i]
		v := votes[cm.ID]
		c.Rows = append(c.Rows, recentRow{
			Comment:    cm,
			ShowUpvote: !cm.IsDeleted && v != 1,
			ShowUnvote: loggedIn && !cm.IsDeleted && v == 1,
		})
	}

	switch {
	case len(comments) > 0:
		c.More = "/comments?" + paging.PageQP + "=" + strconv.Itoa(pg.Page+1)
	case err == nil && pg.Page > 1:
		c.Empty = "No more comments."
	case err == nil:
		c.Empty = "No comments found."
	}

	app.render(w, "comments", app.newPage(r, "Comments | Hacker News", c), code)
}
