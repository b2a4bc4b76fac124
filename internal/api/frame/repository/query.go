package frameRepository

const (
	queryRegisterUpload = `
		INSERT INTO uploaded_frames (
			id,
			session_id,
			frame_id,
			image_path,
			content_type,
			size_bytes,
			created_at
		) VALUES (
			:id,
			:session_id,
			:frame_id,
			:image_path,
			:content_type,
			:size_bytes,
			:created_at
		)
		ON CONFLICT (session_id, frame_id) DO UPDATE SET
			image_path = EXCLUDED.image_path,
			content_type = EXCLUDED.content_type,
			size_bytes = EXCLUDED.size_bytes
	`

	queryGetUpload = `
		SELECT
			id,
			session_id,
			frame_id,
			image_path,
			content_type,
			size_bytes,
			created_at
		FROM uploaded_frames
		WHERE session_id = :session_id AND frame_id = :frame_id
	`

	queryGetUploadsBySession = `
		SELECT
			id,
			session_id,
			frame_id,
			image_path,
			content_type,
			size_bytes,
			created_at
		FROM uploaded_frames
		WHERE session_id = :session_id
		ORDER BY created_at ASC, frame_id ASC
	`

	queryDeleteProcessedFrame = `
		DELETE FROM processed_frames
		WHERE session_id = :session_id AND frame_id = :frame_id
	`

	queryInsertProcessedFrame = `
		INSERT INTO processed_frames (
			id,
			session_id,
			frame_id,
			image_path,
			processed_image_path,
			latitude,
			longitude,
			confidence,
			class,
			has_crack,
			created_at
		) VALUES (
			:id,
			:session_id,
			:frame_id,
			:image_path,
			:processed_image_path,
			:latitude,
			:longitude,
			:confidence,
			:class,
			:has_crack,
			:created_at
		)
	`

	queryInsertPrediction = `
		INSERT INTO crack_predictions (
			id,
			frame_id,
			x,
			y,
			width,
			height,
			confidence,
			class
		) VALUES (
			:id,
			:frame_id,
			:x,
			:y,
			:width,
			:height,
			:confidence,
			:class
		)
	`

	queryGetProcessedFramesBySession = `
		SELECT
			id,
			session_id,
			frame_id,
			image_path,
			processed_image_path,
			latitude,
			longitude,
			confidence,
			class,
			has_crack,
			created_at
		FROM processed_frames
		WHERE session_id = :session_id
		ORDER BY created_at ASC
	`

	queryGetPredictionsByFrame = `
		SELECT
			id,
			frame_id,
			x,
			y,
			width,
			height,
			confidence,
			class
		FROM crack_predictions
		WHERE frame_id = :frame_id
	`

	queryInsertGpsFix = `
		INSERT INTO gps_logs (
			id,
			session_id,
			second,
			latitude,
			longitude,
			accuracy,
			position
		) VALUES (
			:id,
			:session_id,
			:second,
			:latitude,
			:longitude,
			:accuracy,
			:position
		)
	`

	queryGetFixesBySession = `
		SELECT
			second,
			latitude,
			longitude,
			accuracy
		FROM gps_logs
		WHERE session_id = :session_id
		ORDER BY position ASC
	`

	queryDeleteFixesBySession = `
		DELETE FROM gps_logs
		WHERE session_id = :session_id
	`
)
