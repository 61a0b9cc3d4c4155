package server

import (
	"context"
	"runtime/debug"
	"time"

	"booktracker/internal/client"
	"booktracker/internal/database"
	"booktracker/internal/metrics"
	"booktracker/internal/misc"
	"booktracker/internal/model"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SearchAll is the scheduled run: every book of every user with notifications enabled is
// searched, unless it was searched within SearchThrottle.
func (s Server) SearchAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.RecordBatchRun(time.Since(start), err) }()

	s.Logger.Info("SearchAll: Starting to search all Books")
	us, err := s.DB.UsersFindNotificationsEnabled(ctx)
	if err != nil {
		return errors.WithMessage(err, "SearchAll: error listing Users")
	}
	s.Logger.Infof("SearchAll: Retrieved %d User(s) with notifications enabled", len(us))

	userLimiter := client.NewLimiter(s.UserInterval)
	bookLimiter := client.NewLimiter(s.BookInterval)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(misc.Max(s.UserConcurrency, 1))
	var waitErr error
	for _, u := range us {
		u := u
		if waitErr = userLimiter.Wait(gctx); waitErr != nil {
			break
		}
		g.Go(func() error {
			return s.searchUser(gctx, u, bookLimiter)
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}
	if waitErr != nil {
		return errors.Wrap(waitErr, "SearchAll: run interrupted")
	}

	s.Logger.Infof("SearchAll: Finished searching all Books, took %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (s Server) searchUser(ctx context.Context, u model.User, bookLimiter *rate.Limiter) error {
	bs, err := s.DB.BooksFindByUser(ctx, u.ID)
	if err != nil {
		if errors.Is(err, database.ErrMalformedDocument) {
			s.Logger.Errorf("searchUser: Skipping UserID: %s, malformed Book document, err: %v", u.ID.Hex(), err)
			return nil
		}
		return errors.WithMessagef(err, "searchUser: error listing Books for UserID: %s", u.ID.Hex())
	}
	s.Logger.Debugf("searchUser: Retrieved %d Book(s) for UserID: %s", len(bs), u.ID.Hex())

	for _, b := range bs {
		if err = ctx.Err(); err != nil {
			return err
		}
		if !b.SearchDue(s.now(), s.SearchThrottle) {
			metrics.BooksSkipped.Inc()
			s.Logger.Tracef("searchUser: Book searched recently, skipping BookID: %s", b.ID.Hex())
			continue
		}
		if err = bookLimiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "searchUser: run interrupted")
		}
		s.searchBook(ctx, u, b)
	}
	return nil
}

// searchBook never fails the run; errors and panics are logged.
func (s Server) searchBook(ctx context.Context, u model.User, b model.Book) {
	defer func() {
		if re := recover(); re != nil {
			s.Logger.Errorf("searchBook: Panic while processing BookID: %s, err: %v, stack trace:\n%s", b.ID.Hex(), re, debug.Stack())
		}
	}()

	if err := s.processBook(ctx, u, b); err != nil {
		s.Logger.Errorf("searchBook: Error processing BookID: %s, err: %v", b.ID.Hex(), err)
	}
}

func (s Server) processBook(ctx context.Context, u model.User, b model.Book) error {
	bookTitle := misc.StringLimit(b.Title, 45)
	s.Logger.Infof("processBook: Searching listings for Book: %s, ID: %s", bookTitle, b.ID.Hex())

	searchedAt := s.now()
	rs := s.Search.SearchBook(ctx, b.Title, b.Author)
	metrics.BooksSearched.Inc()

	if len(rs) > 0 {
		if err := s.notify(ctx, u, b, rs, searchedAt); err != nil {
			return err
		}
	} else {
		s.Logger.Debugf("processBook: No listings for Book: %s, ID: %s", bookTitle, b.ID.Hex())
	}

	return errors.WithMessagef(s.DB.BookLastSearchedUpdate(ctx, b.ID, s.now()),
		"processBook: error updating lastSearched of BookID: %s", b.ID.Hex())
}
