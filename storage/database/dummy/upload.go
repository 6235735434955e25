package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

type uploadRepository struct {
	db *uploadTable
}

var _ attendance.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *DB) attendance.Repository {
	return &uploadRepository{db: db.upload}
}

func (repo *uploadRepository) query(clientID string, kind attendance.Kind) []attendance.Upload {
	upls := make([]attendance.Upload, 0)
	for _, u := range repo.db.table {
		if u.ClientID == clientID && (kind == "" || u.Kind == kind) {
			upls = append(upls, *u)
		}
	}
	return upls
}

// newestFirst orders by created_at, then by insertion order.
func (repo *uploadRepository) newestFirst(upls []attendance.Upload) {
	sort.SliceStable(upls, func(i, j int) bool {
		if !upls[i].CreatedAt.Equal(upls[j].CreatedAt) {
			return upls[i].CreatedAt.After(upls[j].CreatedAt)
		}
		return repo.db.seq[upls[i].ID] > repo.db.seq[upls[j].ID]
	})
}

func (repo *uploadRepository) LatestUpload(_ context.Context, clientID string, kind attendance.Kind) (attendance.Upload, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	upls := repo.query(clientID, kind)
	if len(upls) == 0 {
		return attendance.Upload{}, attendance.ErrNotFound
	}
	repo.newestFirst(upls)
	return upls[0], nil
}

func (repo *uploadRepository) ListUploads(_ context.Context, filter attendance.UploadFilter, orderings ...core.DBOrdering) ([]attendance.Upload, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	upls := repo.query(filter.ClientID, filter.Kind)
	repo.newestFirst(upls)
	for _, ord := range orderings {
		if ord.Field == "created_at" && ord.Ascending {
			for i, j := 0, len(upls)-1; i < j; i, j = i+1, j-1 {
				upls[i], upls[j] = upls[j], upls[i]
			}
		}
	}
	if filter.Limit > 0 && len(upls) > filter.Limit {
		upls = upls[:filter.Limit]
	}
	return upls, nil
}

func (repo *uploadRepository) CreateUpload(_ context.Context, upl attendance.Upload) (attendance.Upload, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if upl.ID == "" {
		return attendance.Upload{}, errors.New("upload id is required")
	}
	if _, ok := repo.db.table[upl.ID]; ok {
		return attendance.Upload{}, errors.Errorf("upload %s already exists", upl.ID)
	}
	repo.db.next++
	repo.db.seq[upl.ID] = repo.db.next
	repo.db.table[upl.ID] = &upl
	return upl, nil
}
