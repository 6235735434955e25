package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/attendr/core"
	"github.com/trezcool/attendr/core/attendance"
)

const (
	uploadColumns = `id, client_id, kind, payload, analyzed_text, exam_start_date, created_at, updated_at`
	maxListLimit  = 100
)

// columns clients may order history by
var uploadOrderings = map[string]string{
	"created_at": "created_at",
	"kind":       "kind",
}

var defaultUploadOrdering = []core.DBOrdering{{Field: "created_at"}, {Field: "id"}}

type (
	uploadRepository struct {
		db *sqlx.DB
	}

	uploadRow struct {
		ID            string      `db:"id"`
		ClientID      string      `db:"client_id"`
		Kind          string      `db:"kind"`
		Payload       string      `db:"payload"` // jsonb
		AnalyzedText  null.String `db:"analyzed_text"`
		ExamStartDate null.Time   `db:"exam_start_date"`
		CreatedAt     time.Time   `db:"created_at"`
		UpdatedAt     time.Time   `db:"updated_at"`
	}
)

var _ attendance.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *sqlx.DB) attendance.Repository {
	return &uploadRepository{db: db}
}

func toRow(upl attendance.Upload) uploadRow {
	payload := string(upl.Payload)
	if payload == "" {
		payload = "[]"
	}
	return uploadRow{
		ID:            upl.ID,
		ClientID:      upl.ClientID,
		Kind:          string(upl.Kind),
		Payload:       payload,
		AnalyzedText:  null.NewString(upl.AnalyzedText, upl.AnalyzedText != ""),
		ExamStartDate: null.TimeFromPtr(upl.ExamStartDate),
		CreatedAt:     upl.CreatedAt.UTC(),
		UpdatedAt:     upl.UpdatedAt.UTC(),
	}
}

func (row uploadRow) upload() attendance.Upload {
	return attendance.Upload{
		ID:            row.ID,
		ClientID:      row.ClientID,
		Kind:          attendance.Kind(row.Kind),
		Payload:       json.RawMessage(row.Payload),
		AnalyzedText:  row.AnalyzedText.String,
		ExamStartDate: row.ExamStartDate.Ptr(),
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

func (repo uploadRepository) LatestUpload(ctx context.Context, clientID string, kind attendance.Kind) (attendance.Upload, error) {
	var row uploadRow
	q := `SELECT ` + uploadColumns + ` FROM uploads
		WHERE client_id = $1 AND kind = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, clientID, string(kind)); err != nil {
		if err == sql.ErrNoRows {
			return attendance.Upload{}, attendance.ErrNotFound
		}
		return attendance.Upload{}, errors.Wrap(err, "selecting latest upload")
	}
	return row.upload(), nil
}

func (repo uploadRepository) ListUploads(ctx context.Context, filter attendance.UploadFilter, orderings ...core.DBOrdering) ([]attendance.Upload, error) {
	q := `SELECT ` + uploadColumns + ` FROM uploads WHERE client_id = $1`
	args := []interface{}{filter.ClientID}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		q += ` AND kind = $2`
	}
	q += ` ORDER BY ` + core.OrderingClause(orderings, uploadOrderings, defaultUploadOrdering...)

	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	q += ` LIMIT $` + strconv.Itoa(len(args))

	var rows []uploadRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting uploads")
	}
	upls := make([]attendance.Upload, 0, len(rows))
	for _, row := range rows {
		upls = append(upls, row.upload())
	}
	return upls, nil
}

func (repo uploadRepository) CreateUpload(ctx context.Context, upl attendance.Upload) (attendance.Upload, error) {
	row := toRow(upl)
	q := `INSERT INTO uploads (` + uploadColumns + `)
		VALUES (:id, :client_id, :kind, :payload, :analyzed_text, :exam_start_date, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return attendance.Upload{}, errors.Wrap(err, "inserting upload")
	}
	return row.upload(), nil
}
