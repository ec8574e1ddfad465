package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/arnold/gatherings-api/internal/apperr"
	"github.com/arnold/gatherings-api/internal/listing"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/testutil"
)

func TestReviewLifecycle(t *testing.T) {
	e := newEnv(t)
	owner := testutil.CreateMember(t, e.db, "owner")
	a := testutil.CreateMember(t, e.db, "a")
	outsider := testutil.CreateMember(t, e.db, "outsider")
	g := e.createGathering(t, owner, "reviewed", 2, 5)
	if _, err := e.svc.Join(e.ctx, g.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	req := models.ReviewRequest{Score: 5, Comment: "great"}

	if _, err := e.svc.CreateReview(e.ctx, g.ID, a.ID, req); !errors.Is(err, apperr.ErrReviewIneligible) {
		t.Errorf("CreateReview(before close) error = %v, want ReviewIneligible", err)
	}

	e.clock.Advance(44 * time.Hour)

	if _, err := e.svc.CreateReview(e.ctx, g.ID, outsider.ID, req); !errors.Is(err, apperr.ErrReviewIneligible) {
		t.Errorf("CreateReview(non-attendee) error = %v, want ReviewIneligible", err)
	}
	if _, err := e.svc.CreateReview(e.ctx, g.ID, a.ID, models.ReviewRequest{Score: 6, Comment: "x"}); !errors.Is(err, apperr.ErrInvalidScore) {
		t.Errorf("CreateReview(score 6) error = %v, want InvalidScore", err)
	}

	first, err := e.svc.CreateReview(e.ctx, g.ID, a.ID, req)
	if err != nil {
		t.Fatalf("CreateReview() error = %v", err)
	}
	if first.Author.Name != "a" || first.GatheringName != "reviewed" {
		t.Errorf("review = %+v", first)
	}
	if _, err := e.svc.CreateReview(e.ctx, g.ID, a.ID, req); !errors.Is(err, apperr.ErrDuplicateReview) {
		t.Errorf("second CreateReview() error = %v, want DuplicateReview", err)
	}

	updated, err := e.svc.UpdateReview(e.ctx, g.ID, a.ID, models.ReviewRequest{Score: 3, Comment: "fine"})
	if err != nil || updated.Score != 3 {
		t.Fatalf("UpdateReview() = %+v, %v", updated, err)
	}

	if err := e.svc.DeleteReview(e.ctx, g.ID, a.ID); err != nil {
		t.Fatalf("DeleteReview() error = %v", err)
	}
	if err := e.svc.DeleteReview(e.ctx, g.ID, a.ID); !errors.Is(err, apperr.ErrReviewNotFound) {
		t.Errorf("second DeleteReview() error = %v, want ReviewNotFound", err)
	}
	if _, err := e.svc.UpdateReview(e.ctx, g.ID, a.ID, req); !errors.Is(err, apperr.ErrReviewNotFound) {
		t.Errorf("UpdateReview(retracted) error = %v, want ReviewNotFound", err)
	}

	restored, err := e.svc.CreateReview(e.ctx, g.ID, a.ID, models.ReviewRequest{Score: 2, Comment: "again"})
	if err != nil {
		t.Fatalf("CreateReview() after retraction error = %v", err)
	}
	if restored.ID != first.ID || restored.Score != 2 {
		t.Errorf("restored = %+v, want id %s score 2", restored, first.ID)
	}

	if err := e.svc.CancelGathering(e.ctx, g.ID, owner.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.UpdateReview(e.ctx, g.ID, a.ID, req); !errors.Is(err, apperr.ErrGatheringCanceled) {
		t.Errorf("UpdateReview(canceled) error = %v, want GatheringCanceled", err)
	}
}

func TestReviewListingAndScores(t *testing.T) {
	e := newEnv(t)
	owner := testutil.CreateMember(t, e.db, "owner")
	g := e.createGathering(t, owner, "scored", 2, 10)
	other := e.createGathering(t, owner, "other", 2, 10)

	scores := []int{5, 3, 4, 5}
	members := make([]*models.Member, len(scores))
	for i := range scores {
		members[i] = testutil.CreateMember(t, e.db, fmt.Sprintf("m%d", i))
		if _, err := e.svc.Join(e.ctx, g.ID, members[i].ID); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.svc.Join(e.ctx, other.ID, members[0].ID); err != nil {
		t.Fatal(err)
	}

	e.clock.Advance(44 * time.Hour)
	for i, score := range scores {
		if _, err := e.svc.CreateReview(e.ctx, g.ID, members[i].ID, models.ReviewRequest{Score: score, Comment: "ok"}); err != nil {
			t.Fatalf("CreateReview() error = %v", err)
		}
	}
	if _, err := e.svc.CreateReview(e.ctx, other.ID, members[0].ID, models.ReviewRequest{Score: 1, Comment: "meh"}); err != nil {
		t.Fatal(err)
	}

	t.Run("sorted by score", func(t *testing.T) {
		list, err := e.svc.ListReviews(e.ctx, g.ID, ReviewSortScoreAsc, listing.Page{Size: 2})
		if err != nil {
			t.Fatal(err)
		}
		if list.Meta.Total != 4 || len(list.Items) != 2 || list.Items[0].Score != 3 || list.Items[1].Score != 4 {
			t.Errorf("score_asc page = %+v", list)
		}

		list, _ = e.svc.ListReviews(e.ctx, g.ID, ReviewSortScoreDesc, listing.Page{})
		if list.Items[0].Score != 5 || list.Items[3].Score != 3 {
			t.Errorf("score_desc = %+v", list.Items)
		}
	})

	t.Run("gathering summary", func(t *testing.T) {
		id := g.ID
		sum, err := e.svc.ScoreSummary(e.ctx, &id)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Total != 4 || sum.Five != 2 || sum.Four != 1 || sum.Three != 1 || sum.Average != 4.3 {
			t.Errorf("summary = %+v", sum)
		}

		d, err := e.svc.GetGathering(e.ctx, g.ID, nil)
		if err != nil {
			t.Fatal(err)
		}
		if d.Scores.Total != 4 {
			t.Errorf("detail scores = %+v", d.Scores)
		}
	})

	t.Run("global summary skips canceled", func(t *testing.T) {
		sum, _ := e.svc.ScoreSummary(e.ctx, nil)
		if sum.Total != 5 || sum.One != 1 {
			t.Errorf("global summary = %+v", sum)
		}
		if err := e.svc.CancelGathering(e.ctx, other.ID, owner.ID); err != nil {
			t.Fatal(err)
		}
		sum, _ = e.svc.ScoreSummary(e.ctx, nil)
		if sum.Total != 4 || sum.One != 0 {
			t.Errorf("global summary after cancel = %+v", sum)
		}
	})

	t.Run("missing gathering", func(t *testing.T) {
		if _, err := e.svc.ListReviews(e.ctx, members[0].ID, ReviewSortLatest, listing.Page{}); !errors.Is(err, apperr.ErrGatheringNotFound) {
			t.Errorf("ListReviews() error = %v, want GatheringNotFound", err)
		}
	})
}
