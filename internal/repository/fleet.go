package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/langchou/chargegazer/internal/models"
)

// FleetRepository 车队匿名充电记录仓库
type FleetRepository struct {
	db *DB
}

// NewFleetRepository 创建车队仓库
func NewFleetRepository(db *DB) *FleetRepository {
	return &FleetRepository{db: db}
}

// SaveSessions 批量写入，指纹重复的记录跳过，返回新增条数
func (r *FleetRepository) SaveSessions(ctx context.Context, sessions []models.FleetSession) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO fleet_sessions (fingerprint, model, start_time, end_time, soc_start, soc_end,
			energy_from_grid, energy_added_hvb, energy_estimated, avg_power, provider, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fingerprint) DO NOTHING
	`

	batch := &pgx.Batch{}
	for i := range sessions {
		fs := &sessions[i]
		batch.Queue(query,
			fs.Fingerprint,
			fs.Model,
			fs.StartTime,
			fs.EndTime,
			fs.SocStart,
			fs.SocEnd,
			fs.EnergyFromGrid,
			fs.EnergyAddedHvb,
			fs.EnergyEstimated,
			fs.AvgPower,
			fs.Provider,
			fs.Cost,
		)
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin fleet insert: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	stored := 0
	for range sessions {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("insert fleet session: %w", err)
		}
		stored += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close fleet batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit fleet insert: %w", err)
	}
	return stored, nil
}

// ListSessions 按开始时间返回记录，model 为空时返回全部车型
func (r *FleetRepository) ListSessions(ctx context.Context, model string) ([]models.FleetSession, error) {
	query := `
		SELECT fingerprint, model, start_time, end_time, soc_start, soc_end,
			energy_from_grid, energy_added_hvb, energy_estimated, avg_power, provider, cost
		FROM fleet_sessions
		WHERE $1 = '' OR model = $1
		ORDER BY start_time, id
	`
	rows, err := r.db.Pool.Query(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("list fleet sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.FleetSession, 0)
	for rows.Next() {
		var fs models.FleetSession
		err := rows.Scan(
			&fs.Fingerprint,
			&fs.Model,
			&fs.StartTime,
			&fs.EndTime,
			&fs.SocStart,
			&fs.SocEnd,
			&fs.EnergyFromGrid,
			&fs.EnergyAddedHvb,
			&fs.EnergyEstimated,
			&fs.AvgPower,
			&fs.Provider,
			&fs.Cost,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fleet session: %w", err)
		}
		sessions = append(sessions, fs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fleet sessions: %w", err)
	}

	return sessions, nil
}

// AvailableModels 已有数据的车型
func (r *FleetRepository) AvailableModels(ctx context.Context) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT DISTINCT model FROM fleet_sessions ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("list fleet models: %w", err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan fleet models: %w", err)
	}
	return names, nil
}

// CountSessions 记录总数
func (r *FleetRepository) CountSessions(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM fleet_sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count fleet sessions: %w", err)
	}
	return count, nil
}
