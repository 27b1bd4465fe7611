// Package search discovers candidate repositories on GitHub and records
// them into the persistence layer, widening a star-count window until the
// configured minimum is reached.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ossminer/crawler/internal/apperrors"
	"github.com/ossminer/crawler/internal/store"
)

const (
	pageSize   = 100
	initialMax = 10_000_000
)

// Search discovers C repositories on GitHub with a star count in
// [minStars, +inf) and saves them into the Store, widening the query window
// from the current minimum star count on record downward to minStars.
type Search struct {
	client   *github.Client
	limiter  *rate.Limiter
	store    *store.Store
	minStars int
	log      *logrus.Logger
}

// New creates a Search client authenticated with apiKey.
func New(apiKey string, minStars int, st *store.Store, log *logrus.Logger) *Search {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := github.NewClient(nil).WithAuthToken(apiKey)
	return &Search{
		client:   client,
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		store:    st,
		minStars: minStars,
		log:      log,
	}
}

// Run discovers repositories until the star window [minStars, max] is
// empty, per spec's crawl operation: each page either yields results (and
// advances to the next page) or signals the window is exhausted (reset page
// to 1 and narrow max to the current minimum on record).
func (s *Search) Run(ctx context.Context) error {
	max, err := s.currentMinStars(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.DbTransient, "determine current min star count")
	}

	found := 0
	page := 1

	for {
		s.log.WithField("found", found).Info("search: polling for repositories")

		repos, hasMore, err := s.getPage(ctx, s.minStars, max, page)
		if err != nil {
			return apperrors.Wrap(err, apperrors.DbTransient, "fetch search page")
		}

		if !hasMore {
			page = 1
			max, err = s.currentMinStars(ctx)
			if err != nil {
				return apperrors.Wrap(err, apperrors.DbTransient, "determine current min star count")
			}
		} else {
			added, err := s.addRepos(ctx, repos)
			if err != nil {
				return err
			}
			found += added
			page++
		}

		if max <= s.minStars {
			break
		}
	}

	return nil
}

// getPage fetches one page of the GitHub repository search and reports
// whether there are more items to paginate through for this window.
func (s *Search) getPage(ctx context.Context, min, max, page int) ([]*github.Repository, bool, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	query := fmt.Sprintf("language:c stars:%d..%d", min, max)
	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: pageSize,
		},
	}

	result, resp, err := s.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		return nil, false, err
	}
	s.rateLimit(resp)

	if len(result.Repositories) == 0 {
		return nil, false, nil
	}
	return result.Repositories, true, nil
}

// rateLimit sleeps until the primary rate-limit window resets when the
// response reports no remaining requests. Secondary (Retry-After) limits
// are not handled here.
func (s *Search) rateLimit(resp *github.Response) {
	if resp == nil {
		return
	}
	if resp.Rate.Remaining == 0 && !resp.Rate.Reset.IsZero() {
		wait := time.Until(resp.Rate.Reset.Time) + time.Second
		if wait > 0 {
			s.log.WithField("seconds", wait.Seconds()).Info("search: sleeping for rate limit reset")
			time.Sleep(wait)
		}
	}
}

// addRepos upserts each discovered repository into the Store.
func (s *Search) addRepos(ctx context.Context, repos []*github.Repository) (int, error) {
	count := 0
	for _, r := range repos {
		rec := store.Repo{
			ID:        r.GetID(),
			FullName:  r.GetFullName(),
			CloneURL:  r.GetCloneURL(),
			StarCount: r.GetStargazersCount(),
		}
		if err := s.store.SaveRepo(ctx, rec); err != nil {
			s.log.WithError(err).WithField("repo", rec.FullName).Warn("search: failed to save repo")
			continue
		}
		count++
		s.log.WithFields(logrus.Fields{"repo": rec.FullName, "id": rec.ID}).Info("search: added repo")
	}
	return count, nil
}

// currentMinStars returns the lowest star count among the un-mined repos on
// record, or initialMax if there are none.
func (s *Search) currentMinStars(ctx context.Context) (int, error) {
	repos, err := s.store.UnminedRepos(ctx)
	if err != nil {
		return 0, err
	}
	if len(repos) == 0 {
		return initialMax, nil
	}
	min := repos[0].StarCount
	for _, r := range repos[1:] {
		if r.StarCount < min {
			min = r.StarCount
		}
	}
	return min, nil
}
