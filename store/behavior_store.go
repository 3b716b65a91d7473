package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"foliopulse/api/aggregate"
	"foliopulse/api/models"
)

type BehaviorStore struct {
	db *sql.DB
}

func NewBehaviorStore(db *sql.DB) *BehaviorStore {
	return &BehaviorStore{db: db}
}

// ApplyDelta merges one batch's worth of incremental updates into the live
// aggregate row as a single conditional write. The merge expressions are
// monotonic (add, GREATEST, OR) so concurrent ingestion requests for the same
// session never lose updates to each other. An empty delta writes nothing.
func (s *BehaviorStore) ApplyDelta(ctx context.Context, sessionID string, d aggregate.Delta) error {
	if d.Empty() {
		return nil
	}

	var nav interface{}
	if d.NavigationPath != nil {
		nav = pq.Array(d.NavigationPath)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregated_behaviors (
			session_id, time_on_homepage, scroll_depth, clicked_resume,
			opened_code_samples_count, visited_projects_count, opened_design_showcase,
			played_demos_count, opened_ai_intake_form, interacted_with_animations,
			idle_time, navigation_path, behavior_vector, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12::text[], '{}'), $13, $14)
		ON CONFLICT (session_id) DO UPDATE SET
			time_on_homepage           = aggregated_behaviors.time_on_homepage + EXCLUDED.time_on_homepage,
			scroll_depth               = GREATEST(aggregated_behaviors.scroll_depth, EXCLUDED.scroll_depth),
			clicked_resume             = aggregated_behaviors.clicked_resume OR EXCLUDED.clicked_resume,
			opened_code_samples_count  = aggregated_behaviors.opened_code_samples_count + EXCLUDED.opened_code_samples_count,
			visited_projects_count     = aggregated_behaviors.visited_projects_count + EXCLUDED.visited_projects_count,
			opened_design_showcase     = aggregated_behaviors.opened_design_showcase OR EXCLUDED.opened_design_showcase,
			played_demos_count         = aggregated_behaviors.played_demos_count + EXCLUDED.played_demos_count,
			opened_ai_intake_form      = aggregated_behaviors.opened_ai_intake_form OR EXCLUDED.opened_ai_intake_form,
			interacted_with_animations = aggregated_behaviors.interacted_with_animations OR EXCLUDED.interacted_with_animations,
			idle_time                  = aggregated_behaviors.idle_time + EXCLUDED.idle_time,
			navigation_path            = COALESCE($12::text[], aggregated_behaviors.navigation_path),
			updated_at                 = EXCLUDED.updated_at;
	`,
		sessionID, d.TimeOnHomepage, d.ScrollDepth, d.ClickedResume,
		d.OpenedCodeSamplesCount, d.VisitedProjectsCount, d.OpenedDesignShowcase,
		d.PlayedDemosCount, d.OpenedAiIntakeForm, d.InteractedWithAnimations,
		d.IdleTime, nav, pq.Array(models.ZeroVector()), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to apply behavior delta: %w", err)
	}
	return nil
}

// MergeSnapshot reconciles a rollup-computed snapshot into the stored row.
// Counters accumulate across rollup runs; booleans, maxima, the vector, the
// navigation path, and the total event count are point-in-time snapshots of
// the most recent rollup.
func (s *BehaviorStore) MergeSnapshot(ctx context.Context, agg models.AggregatedBehavior) error {
	nav := agg.NavigationPath
	if nav == nil {
		nav = []string{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO aggregated_behaviors (
			session_id, time_on_homepage, scroll_depth, clicked_resume,
			opened_code_samples_count, visited_projects_count, opened_design_showcase,
			played_demos_count, opened_ai_intake_form, interacted_with_animations,
			idle_time, total_event_count, navigation_path, behavior_vector, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id) DO UPDATE SET
			time_on_homepage           = aggregated_behaviors.time_on_homepage + EXCLUDED.time_on_homepage,
			opened_code_samples_count  = aggregated_behaviors.opened_code_samples_count + EXCLUDED.opened_code_samples_count,
			visited_projects_count     = aggregated_behaviors.visited_projects_count + EXCLUDED.visited_projects_count,
			played_demos_count         = aggregated_behaviors.played_demos_count + EXCLUDED.played_demos_count,
			scroll_depth               = EXCLUDED.scroll_depth,
			clicked_resume             = EXCLUDED.clicked_resume,
			opened_design_showcase     = EXCLUDED.opened_design_showcase,
			opened_ai_intake_form      = EXCLUDED.opened_ai_intake_form,
			interacted_with_animations = EXCLUDED.interacted_with_animations,
			idle_time                  = EXCLUDED.idle_time,
			total_event_count          = EXCLUDED.total_event_count,
			navigation_path            = EXCLUDED.navigation_path,
			behavior_vector            = EXCLUDED.behavior_vector,
			updated_at                 = EXCLUDED.updated_at;
	`,
		agg.SessionID, agg.TimeOnHomepage, agg.ScrollDepth, agg.ClickedResume,
		agg.OpenedCodeSamplesCount, agg.VisitedProjectsCount, agg.OpenedDesignShowcase,
		agg.PlayedDemosCount, agg.OpenedAiIntakeForm, agg.InteractedWithAnimations,
		agg.IdleTime, agg.TotalEventCount, pq.Array(nav), pq.Array(agg.BehaviorVector), agg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to merge rollup snapshot: %w", err)
	}
	return nil
}

// Get returns the aggregate row, or nil when the session has none.
func (s *BehaviorStore) Get(ctx context.Context, sessionID string) (*models.AggregatedBehavior, error) {
	agg := &models.AggregatedBehavior{SessionID: sessionID}
	var nav pq.StringArray
	var vector pq.Float64Array

	err := s.db.QueryRowContext(ctx, `
		SELECT time_on_homepage, scroll_depth, clicked_resume,
			opened_code_samples_count, visited_projects_count, opened_design_showcase,
			played_demos_count, opened_ai_intake_form, interacted_with_animations,
			idle_time, total_event_count, navigation_path, behavior_vector, updated_at
		FROM aggregated_behaviors
		WHERE session_id = $1;
	`, sessionID).Scan(
		&agg.TimeOnHomepage, &agg.ScrollDepth, &agg.ClickedResume,
		&agg.OpenedCodeSamplesCount, &agg.VisitedProjectsCount, &agg.OpenedDesignShowcase,
		&agg.PlayedDemosCount, &agg.OpenedAiIntakeForm, &agg.InteractedWithAnimations,
		&agg.IdleTime, &agg.TotalEventCount, &nav, &vector, &agg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load aggregate row: %w", err)
	}

	agg.NavigationPath = []string(nav)
	agg.BehaviorVector = []float64(vector)
	return agg, nil
}

// DeleteStale removes aggregate rows not touched since the cutoff; sessions
// themselves are long-lived and stay behind.
func (s *BehaviorStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM aggregated_behaviors WHERE updated_at < $1;`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale aggregates: %w", err)
	}
	return res.RowsAffected()
}
