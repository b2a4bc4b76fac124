package sessionRepository

const (
	queryCreateSession = `
		INSERT INTO scan_sessions (
			id,
			name,
			description,
			status,
			total_frames,
			processed_frames,
			total_cracks,
			created_at,
			updated_at
		) VALUES (
			:id,
			:name,
			:description,
			:status,
			:total_frames,
			:processed_frames,
			:total_cracks,
			:created_at,
			:updated_at
		)
	`

	queryGetSessionByID = `
		SELECT
			id,
			name,
			description,
			status,
			total_frames,
			processed_frames,
			total_cracks,
			created_at,
			updated_at
		FROM scan_sessions
		WHERE id = :id
	`

	queryGetSessions = `
		SELECT
			id,
			name,
			description,
			status,
			total_frames,
			processed_frames,
			total_cracks,
			created_at,
			updated_at
		FROM scan_sessions
		ORDER BY created_at DESC
	`

	queryUpdateSessionStats = `
		UPDATE scan_sessions
		SET
			total_frames = :total_frames,
			processed_frames = :processed_frames,
			total_cracks = :total_cracks,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryUpdateSessionStatus = `
		UPDATE scan_sessions
		SET
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`

	queryDeleteSession = `
		DELETE FROM scan_sessions
		WHERE id = :id
	`
)
