package dummydb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
	"github.com/trezcool/attendr/tests"
)

func TestUploadRepository(t *testing.T) {
	db, err := Open()
	require.NoError(t, err)
	repo := NewUploadRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err = repo.LatestUpload(ctx, "c1", attendance.KindAttendance)
	assert.Equal(t, attendance.ErrNotFound, err)

	first := testutil.CreateUpload(t, repo, "c1", attendance.KindAttendance, `[]`, base)
	second := testutil.CreateUpload(t, repo, "c1", attendance.KindAttendance, `[]`, base.Add(time.Hour))
	// same timestamp: the later insert wins
	third := testutil.CreateUpload(t, repo, "c1", attendance.KindAttendance, `[]`, base.Add(time.Hour))
	testutil.CreateUpload(t, repo, "c1", attendance.KindTimetable, `[]`, base.Add(2*time.Hour))

	got, err := repo.LatestUpload(ctx, "c1", attendance.KindAttendance)
	require.NoError(t, err)
	assert.Equal(t, third.ID, got.ID)

	tests := []struct {
		name      string
		filter    attendance.UploadFilter
		orderings []core.DBOrdering
		wantIDs   []string
	}{
		{name: "newest first", filter: attendance.UploadFilter{ClientID: "c1", Kind: attendance.KindAttendance}, wantIDs: []string{third.ID, second.ID, first.ID}},
		{name: "oldest first", filter: attendance.UploadFilter{ClientID: "c1", Kind: attendance.KindAttendance}, orderings: []core.DBOrdering{{Field: "created_at", Ascending: true}}, wantIDs: []string{first.ID, second.ID, third.ID}},
		{name: "limit", filter: attendance.UploadFilter{ClientID: "c1", Kind: attendance.KindAttendance, Limit: 2}, wantIDs: []string{third.ID, second.ID}},
		{name: "other client", filter: attendance.UploadFilter{ClientID: "c2"}, wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upls, err := repo.ListUploads(ctx, tt.filter, tt.orderings...)
			if err != nil {
				t.Fatalf("ListUploads() error = %v", err)
			}
			ids := make([]string, 0, len(upls))
			for _, u := range upls {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	_, err = repo.CreateUpload(ctx, first)
	assert.Error(t, err)
}
