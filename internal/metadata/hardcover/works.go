package hardcover

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"strconv"
)

// worksQuery lists the books attributed to an author, with editions and
// series placement.
const worksQuery = `query Works($authorID: Int!) {
  contributions(where: {author_id: {_eq: $authorID}}) {
    book {
      id
      title
      description
      editions {
        asin
        isbn_10
        isbn_13
      }
      book_series {
        position
        series {
          name
          id
        }
      }
    }
  }
}`

// GetWorks returns the works attributed to a Hardcover author ID.
// Contributions without a book payload are skipped.
func (c *Client) GetWorks(ctx context.Context, authorID string) ([]Work, error) {
	id, err := strconv.ParseInt(authorID, 10, 64)
	if err != nil {
		return nil, wrapError("getWorks", authorID, fmt.Errorf("%w: author id must be numeric", ErrBadRequest))
	}

	data, err := c.doQuery(ctx, worksQuery, map[string]any{"authorID": id})
	if err != nil {
		return nil, wrapError("getWorks", authorID, err)
	}

	var resp struct {
		Contributions []struct {
			Book *struct {
				ID          int64  `json:"id"`
				Title       string `json:"title"`
				Description string `json:"description"`
				Editions    []struct {
					ASIN   string `json:"asin"`
					ISBN10 string `json:"isbn_10"`
					ISBN13 string `json:"isbn_13"`
				} `json:"editions"`
				BookSeries []struct {
					Position float64 `json:"position"`
					Series   struct {
						ID   int64  `json:"id"`
						Name string `json:"name"`
					} `json:"series"`
				} `json:"book_series"`
			} `json:"book"`
		} `json:"contributions"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, wrapError("getWorks", authorID, fmt.Errorf("parse response: %w", err))
	}

	works := make([]Work, 0, len(resp.Contributions))
	for _, contribution := range resp.Contributions {
		book := contribution.Book
		if book == nil {
			continue
		}

		work := Work{
			ID:          strconv.FormatInt(book.ID, 10),
			Title:       book.Title,
			Description: htmlToMarkdown(book.Description),
		}

		for _, e := range book.Editions {
			work.Editions = append(work.Editions, Edition{
				ASIN:   e.ASIN,
				ISBN10: e.ISBN10,
				ISBN13: e.ISBN13,
			})
		}

		for _, bs := range book.BookSeries {
			work.Series = append(work.Series, WorkSeries{
				SeriesID: strconv.FormatInt(bs.Series.ID, 10),
				Name:     bs.Series.Name,
				Position: bs.Position,
			})
		}

		works = append(works, work)
	}

	return works, nil
}
