package listing

import (
	"testing"
	"time"

	"github.com/arnold/gatherings-api/internal/ledger"
	"github.com/arnold/gatherings-api/internal/models"
	"github.com/arnold/gatherings-api/internal/testutil"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	owner   *models.Member
	viewer  *models.Member
	chess   *models.Gathering
	hike    *models.Gathering
	closed  *models.Gathering
	dropped *models.Gathering
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{db: db}
	f.owner = testutil.CreateMember(t, db, "owner")
	f.viewer = testutil.CreateMember(t, db, "viewer")

	day := time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)
	f.chess = testutil.CreateGathering(t, db, &models.Gathering{
		OwnerID: f.owner.ID, Name: "Chess Night", Category: "games", Location: "Seoul Gangnam",
		GatheringTime: day, DueTime: day.Add(-48 * time.Hour), MaxAttendees: 2,
	})
	f.hike = testutil.CreateGathering(t, db, &models.Gathering{
		OwnerID: f.owner.ID, Name: "Morning Hike", Category: "sports", Location: "Busan",
		GatheringTime: day.AddDate(0, 0, 5), DueTime: day.Add(-24 * time.Hour),
	})
	f.closed = testutil.CreateGathering(t, db, &models.Gathering{
		OwnerID: f.owner.ID, Name: "Old Chess", Category: "games", Location: "Seoul",
		Closed: true,
	})
	f.dropped = testutil.CreateGathering(t, db, &models.Gathering{
		OwnerID: f.owner.ID, Name: "Canceled Chess", Category: "games", Location: "Seoul",
		Canceled: true,
	})

	for _, m := range []uuid.UUID{f.owner.ID, f.viewer.ID} {
		if _, err := ledger.UpsertJoin(db, f.chess.ID, m); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := ledger.UpsertJoin(db, f.closed.ID, f.viewer.ID); err != nil {
		t.Fatal(err)
	}
	db.Create(&models.Heart{GatheringID: f.hike.ID, MemberID: f.viewer.ID})
	return f
}

func names(items []models.GatheringSummary) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, it := range items {
		out[it.Name] = true
	}
	return out
}

func TestListFilters(t *testing.T) {
	f := setup(t)
	start, _ := ParseDate("2025-03-20")
	end, _ := ParseDate("2025-03-20")

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"default is active", Filter{}, []string{"Chess Night", "Morning Hike"}},
		{"closed", Filter{Status: StatusClosed}, []string{"Old Chess"}},
		{"all excludes canceled", Filter{Status: StatusAll}, []string{"Chess Night", "Morning Hike", "Old Chess"}},
		{"query is case insensitive", Filter{Query: "chess", Status: StatusAll}, []string{"Chess Night", "Old Chess"}},
		{"location substring", Filter{Location: "gangnam"}, []string{"Chess Night"}},
		{"category", Filter{Category: "sports"}, []string{"Morning Hike"}},
		{"inclusive day range", Filter{StartDate: start, EndDate: end}, []string{"Chess Night"}},
		{"available", Filter{Available: true}, []string{"Morning Hike"}},
		{"owner page keeps canceled", Filter{OwnerID: &f.owner.ID, Status: StatusAll, IncludeCanceled: true},
			[]string{"Chess Night", "Morning Hike", "Old Chess", "Canceled Chess"}},
		{"attending", Filter{AttendeeID: &f.viewer.ID, Status: StatusAll}, []string{"Chess Night", "Old Chess"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := List(f.db, tt.filter, Page{}, nil, testutil.Epoch)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			got := names(res.Items)
			if len(got) != len(tt.want) || res.Meta.Total != int64(len(tt.want)) {
				t.Fatalf("List() = %v (total %d), want %v", got, res.Meta.Total, tt.want)
			}
			for _, n := range tt.want {
				if !got[n] {
					t.Errorf("List() missing %q, got %v", n, got)
				}
			}
		})
	}
}

func TestListProjection(t *testing.T) {
	f := setup(t)

	res, err := List(f.db, Filter{Sort: SortCloseDate}, Page{}, &f.viewer.ID, testutil.Epoch)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(res.Items) != 2 {
		t.Fatalf("len = %d, want 2", len(res.Items))
	}

	chess, hike := res.Items[0], res.Items[1]
	if chess.Name != "Chess Night" {
		t.Fatalf("closeDate order = %s first, want Chess Night", chess.Name)
	}
	if chess.CurrentAttendees != 2 || chess.Available {
		t.Errorf("chess count=%d available=%v, want 2 false", chess.CurrentAttendees, chess.Available)
	}
	if chess.State != "confirmed" || hike.State != "proposed" {
		t.Errorf("state chess=%s hike=%s, want confirmed proposed", chess.State, hike.State)
	}
	if chess.Owner.Name != "owner" {
		t.Errorf("owner = %q", chess.Owner.Name)
	}
	if chess.Hearted || !hike.Hearted {
		t.Errorf("hearted chess=%v hike=%v, want false true", chess.Hearted, hike.Hearted)
	}

	anon, err := List(f.db, Filter{}, Page{}, nil, testutil.Epoch)
	if err != nil {
		t.Fatal(err)
	}
	for _, it := range anon.Items {
		if it.Hearted {
			t.Errorf("anonymous viewer sees hearted on %s", it.Name)
		}
	}
}

func TestListPaging(t *testing.T) {
	db := testutil.OpenDB(t)
	owner := testutil.CreateMember(t, db, "owner")
	var created []uuid.UUID
	for i := 0; i < 5; i++ {
		g := testutil.CreateGathering(t, db, &models.Gathering{OwnerID: owner.ID, Name: uuid.NewString()[:8]})
		created = append(created, g.ID)
	}

	t.Run("offset", func(t *testing.T) {
		res, err := List(db, Filter{}, Page{Page: 2, Size: 2}, nil, testutil.Epoch)
		if err != nil {
			t.Fatal(err)
		}
		if res.Meta.Total != 5 || res.Meta.TotalPages != 3 || !res.Meta.HasNext {
			t.Errorf("meta = %+v", res.Meta)
		}
		if len(res.Items) != 2 || res.Items[0].ID != created[2] {
			t.Errorf("page 2 = %v", res.Items)
		}
	})

	t.Run("cursor walks newest first", func(t *testing.T) {
		var seen []uuid.UUID
		var cursor *uuid.UUID
		for {
			res, err := ListCursor(db, Filter{}, cursor, 2, nil, testutil.Epoch)
			if err != nil {
				t.Fatal(err)
			}
			for _, it := range res.Items {
				seen = append(seen, it.ID)
			}
			if !res.HasNext {
				break
			}
			cursor = res.NextCursor
		}
		if len(seen) != 5 {
			t.Fatalf("seen %d, want 5", len(seen))
		}
		for i, id := range seen {
			if id != created[4-i] {
				t.Errorf("seen[%d] = %s, want %s", i, id, created[4-i])
			}
		}
	})
}

func TestParse(t *testing.T) {
	if d, err := ParseDate(""); d != nil || err != nil {
		t.Errorf("ParseDate(\"\") = %v, %v", d, err)
	}
	if _, err := ParseDate("20-03-2025"); err == nil {
		t.Error("ParseDate() accepted a bad layout")
	}
	if ParseStatus("bogus") != StatusActive || ParseStatus("closed") != StatusClosed {
		t.Error("ParseStatus()")
	}
	if ParseSort("closeDate") != SortCloseDate || ParseSort("") != SortLatest {
		t.Error("ParseSort()")
	}
}

func TestSummarizeDerivesState(t *testing.T) {
	now := testutil.Epoch
	g := &models.Gathering{MinAttendees: 3, MaxAttendees: 4, Opened: true, DueTime: now.Add(time.Hour)}
	canceled := *g
	canceled.Canceled = true

	tests := []struct {
		name          string
		g             *models.Gathering
		count         int64
		now           time.Time
		wantOpened    bool
		wantAvailable bool
		wantClosed    bool
		wantState     string
	}{
		{"below quorum", g, 1, now, false, true, false, "proposed"},
		{"quorum", g, 3, now, true, true, false, "confirmed"},
		{"full", g, 4, now, true, false, false, "confirmed"},
		{"past due before sweep", g, 3, now.Add(2 * time.Hour), true, true, true, "closed"},
		{"canceled", &canceled, 3, now, true, true, false, "canceled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.g, tt.count, false, tt.now)
			if got.Opened != tt.wantOpened || got.Available != tt.wantAvailable || got.Closed != tt.wantClosed {
				t.Errorf("opened=%v available=%v closed=%v, want %v %v %v",
					got.Opened, got.Available, got.Closed, tt.wantOpened, tt.wantAvailable, tt.wantClosed)
			}
			if got.State != tt.wantState {
				t.Errorf("state = %s, want %s", got.State, tt.wantState)
			}
		})
	}
}
