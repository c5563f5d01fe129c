package motionlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/steadyshot/stabilizer/internal/motion"
)

// Session identifies one stabilization run in the log.
type Session struct {
	ID        string
	Width     int
	Height    int
	Note      string
	StartedAt time.Time
}

// FrameRecord is one logged frame: the estimated inter-frame transform, the
// corrective transform that was applied, and the classifier's view at that
// point in the stream.
type FrameRecord struct {
	SessionID  string
	FrameIndex int64
	Estimated  motion.Transform
	Corrective motion.Transform
	MotionType string
	Metrics    motion.Metrics
}

// Recorder writes one row per processed frame under a fixed session. It
// satisfies the stabilizer core's frame-recorder contract.
type Recorder struct {
	db        *DB
	sessionID string
}

// NewSession registers a new session with a fresh UUID and returns a recorder
// bound to it.
func (db *DB) NewSession(width, height int, note string) (*Recorder, error) {
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO sessions (id, width, height, note)
		VALUES (?, ?, ?, ?)
	`, id, width, height, note)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &Recorder{db: db, sessionID: id}, nil
}

// SessionID returns the UUID of the recorder's session.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// RecordFrame inserts one frame row for the recorder's session.
func (r *Recorder) RecordFrame(frameIndex int64, estimated, corrective motion.Transform, motionType motion.Type, m motion.Metrics) error {
	_, err := r.db.Exec(`
		INSERT INTO frames (
			session_id, frame_index,
			est_dx, est_dy, est_angle, est_log_scale,
			corr_dx, corr_dy, corr_angle, corr_log_scale,
			motion_type,
			mean_magnitude, variance, dir_variance, hf_ratio, consistency, transform_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.sessionID, frameIndex,
		estimated.DX, estimated.DY, estimated.Angle, estimated.LogScale,
		corrective.DX, corrective.DY, corrective.Angle, corrective.LogScale,
		motionType.String(),
		m.MeanMagnitude, m.VarianceMagnitude, m.DirectionalVariance,
		m.HighFrequencyRatio, m.ConsistencyScore, m.TransformCount,
	)
	if err != nil {
		return fmt.Errorf("failed to record frame %d: %w", frameIndex, err)
	}
	return nil
}

// Sessions lists all logged sessions, most recent first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`
		SELECT id, width, height, COALESCE(note, ''), started_at
		FROM sessions
		ORDER BY started_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Width, &s.Height, &s.Note, &s.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// SessionFrames returns all frame records of a session in frame order.
func (db *DB) SessionFrames(sessionID string) ([]FrameRecord, error) {
	rows, err := db.Query(`
		SELECT session_id, frame_index,
		       est_dx, est_dy, est_angle, est_log_scale,
		       corr_dx, corr_dy, corr_angle, corr_log_scale,
		       motion_type,
		       mean_magnitude, variance, dir_variance, hf_ratio, consistency, transform_count
		FROM frames
		WHERE session_id = ?
		ORDER BY frame_index ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	var records []FrameRecord
	for rows.Next() {
		var rec FrameRecord
		err := rows.Scan(
			&rec.SessionID, &rec.FrameIndex,
			&rec.Estimated.DX, &rec.Estimated.DY, &rec.Estimated.Angle, &rec.Estimated.LogScale,
			&rec.Corrective.DX, &rec.Corrective.DY, &rec.Corrective.Angle, &rec.Corrective.LogScale,
			&rec.MotionType,
			&rec.Metrics.MeanMagnitude, &rec.Metrics.VarianceMagnitude,
			&rec.Metrics.DirectionalVariance,
			&rec.Metrics.HighFrequencyRatio, &rec.Metrics.ConsistencyScore,
			&rec.Metrics.TransformCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating frame records: %w", err)
	}
	return records, nil
}

// Trajectory reconstructs the raw cumulative camera path of a session from
// its logged per-frame transforms, in frame order.
func Trajectory(records []FrameRecord) []motion.Transform {
	path := make([]motion.Transform, 0, len(records))
	var current motion.Transform
	for _, rec := range records {
		current = current.Add(rec.Estimated)
		path = append(path, current)
	}
	return path
}

// Smoothed applies the same causal boxcar low pass the stabilizer uses to a
// reconstructed path, for side-by-side plotting.
func Smoothed(path []motion.Transform, radius int) []motion.Transform {
	if radius < 0 {
		radius = 0
	}
	out := make([]motion.Transform, len(path))
	for i := range path {
		span := 2*radius + 1
		if span > i+1 {
			span = i + 1
		}
		var sum motion.Transform
		for _, p := range path[i+1-span : i+1] {
			sum = sum.Add(p)
		}
		out[i] = sum.Scale(1 / float64(span))
	}
	return out
}
