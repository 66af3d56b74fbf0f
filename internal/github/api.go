package github

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/models"
	"github.com/Kamar-Folarin/starred-sync/internal/utils"
)

// FetchStarredRepositories returns every repository the credential's user has starred.
func (c *Client) FetchStarredRepositories(ctx context.Context, credential string) ([]StarredRepo, error) {
	repos, err := FetchAllPages[StarredRepo](ctx, c, credential, "/user/starred", nil, DefaultPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch starred repositories: %w", err)
	}
	return repos, nil
}

// FetchCommitsByDate counts the commits of fullName per UTC author day. since is optional;
// until bounds the range. A missing, inaccessible or empty repository yields no days.
func (c *Client) FetchCommitsByDate(ctx context.Context, credential, fullName string, since *time.Time, until time.Time) (map[models.Date]int, error) {
	owner, name, err := utils.SplitFullName(fullName)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/repos/%s/%s/commits", url.PathEscape(owner), url.PathEscape(name))

	counts := make(map[models.Date]int)
	for page := 1; ; page++ {
		query := url.Values{}
		query.Set("per_page", strconv.Itoa(DefaultPageSize))
		query.Set("page", strconv.Itoa(page))
		query.Set("until", until.UTC().Format(time.RFC3339))
		if since != nil {
			query.Set("since", since.UTC().Format(time.RFC3339))
		}

		var commits []Commit
		resp, err := c.Get(ctx, credential, path, query, &commits)
		if err != nil {
			if IsNotFound(err) || IsEmptyRepository(err) {
				return counts, nil
			}
			return nil, fmt.Errorf("failed to fetch commits for %s: %w", fullName, err)
		}

		for _, commit := range commits {
			if commit.Commit.Author == nil || commit.Commit.Author.Date == "" {
				continue
			}
			authored, err := time.Parse(time.RFC3339, commit.Commit.Author.Date)
			if err != nil {
				c.logger.WithFields(logrus.Fields{
					"repository": fullName,
					"sha":        commit.SHA,
				}).Warnf("Skipping commit with unparseable author date: %v", err)
				continue
			}
			counts[models.DayOf(authored)]++
		}

		if len(commits) == 0 || !HasNextPage(resp.Header) {
			return counts, nil
		}
	}
}
