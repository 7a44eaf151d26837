package db

import (
	"context"

	"climarisk/internal/classify"
	"climarisk/internal/types"
)

// ModelRepository provides data access for the ml_models table. Artifacts are
// versioned: saving never overwrites, and readers pick the highest version
// per category.
type ModelRepository struct {
	db DBTX
}

// NewModelRepository creates a ModelRepository backed by the given database
// connection (pool or transaction).
func NewModelRepository(db DBTX) *ModelRepository {
	return &ModelRepository{db: db}
}

// ListArtifacts returns every stored artifact, decoded. The classify layer
// resolves versions; the repository returns all rows so older versions stay
// inspectable.
func (r *ModelRepository) ListArtifacts(ctx context.Context) ([]*classify.Artifact, error) {
	query := `
		SELECT artifact
		FROM ml_models
		ORDER BY category, version`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying model artifacts", err)
	}
	defer rows.Close()

	var artifacts []*classify.Artifact
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning model artifact row", err)
		}
		a, err := classify.DecodeArtifact(blob)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalModel, "decoding stored model artifact", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating model artifact rows", err)
	}
	return artifacts, nil
}

// SaveArtifact stores a new artifact version. The (category, version) pair is
// unique; re-saving an existing version is a conflict surfaced as a DB error.
func (r *ModelRepository) SaveArtifact(ctx context.Context, a *classify.Artifact) error {
	blob, err := classify.EncodeArtifact(a)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalModel, "encoding model artifact", err)
	}

	query := `
		INSERT INTO ml_models (category, version, artifact, accuracy, trained_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())`

	_, err = r.db.Exec(ctx, query, a.Category, a.Version, blob, a.Accuracy, a.TrainedAt)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "storing model artifact", err)
	}
	return nil
}

// ListInfo returns metadata for the highest stored version per category,
// without decoding artifact blobs. Serves the model diagnostics endpoint in
// both classifier modes.
func (r *ModelRepository) ListInfo(ctx context.Context) ([]types.ModelInfo, error) {
	query := `
		SELECT DISTINCT ON (category)
			category, version, accuracy, trained_at, updated_at
		FROM ml_models
		ORDER BY category, version DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "querying model metadata", err)
	}
	defer rows.Close()

	var infos []types.ModelInfo
	for rows.Next() {
		var info types.ModelInfo
		err := rows.Scan(&info.Category, &info.Version, &info.Accuracy, &info.TrainedAt, &info.UpdatedAt)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning model metadata row", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating model metadata rows", err)
	}
	return infos, nil
}
