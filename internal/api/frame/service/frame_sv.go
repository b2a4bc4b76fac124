package frameService

import (
	"RailscanGolang/internal/api/frame"
	"RailscanGolang/internal/entity"
	"RailscanGolang/pkg/annotate"
	contextPkg "RailscanGolang/pkg/context"
	gpsPkg "RailscanGolang/pkg/gps"
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

func (s *frameService) UploadGpsLog(ctx context.Context, sessionID string, logFile io.Reader) (frame.GpsLogUploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.GpsLogUploadResponse{}, err
	}

	fixes, report, err := gpsPkg.ParseLog(logFile, s.log)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"error":      err.Error(),
		}).Error("Failed to read gps log")
		return frame.GpsLogUploadResponse{}, err
	}

	if len(fixes) == 0 {
		return frame.GpsLogUploadResponse{}, frame.ErrEmptyGpsLog
	}

	client, err := s.frameRepository.NewClient(true)
	if err != nil {
		return frame.GpsLogUploadResponse{}, err
	}

	// A re-upload replaces the previous log wholesale.
	if err := client.Gps.DeleteFixesBySession(ctx, sessionID); err != nil {
		client.Rollback()
		return frame.GpsLogUploadResponse{}, err
	}

	if err := client.Gps.InsertFixes(ctx, sessionID, fixes); err != nil {
		client.Rollback()
		return frame.GpsLogUploadResponse{}, err
	}

	if err := client.Commit(); err != nil {
		return frame.GpsLogUploadResponse{}, err
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"parsed":     report.Parsed,
		"skipped":    report.Skipped,
	}).Info("GPS log stored")

	return frame.GpsLogUploadResponse{
		Parsed:  report.Parsed,
		Skipped: report.Skipped,
	}, nil
}

func (s *frameService) UploadFrames(ctx context.Context, sessionID string, files []*multipart.FileHeader) (frame.FrameUploadResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.FrameUploadResponse{}, err
	}

	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return frame.FrameUploadResponse{}, err
	}

	response := frame.FrameUploadResponse{
		Accepted: make([]string, 0, len(files)),
	}

	for _, fileHeader := range files {
		if err := s.utils.ValidateFrameFile(fileHeader); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"filename":   fileHeader.Filename,
				"error":      err.Error(),
			}).Warn("Rejecting frame file")
			response.Rejected = append(response.Rejected, fileHeader.Filename)
			continue
		}

		data, err := readMultipartFile(fileHeader)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"filename":   fileHeader.Filename,
				"error":      err.Error(),
			}).Error("Failed to read frame file")
			response.Rejected = append(response.Rejected, fileHeader.Filename)
			continue
		}

		frameID := strings.ToLower(fileHeader.Filename)
		key := originalKey(sessionID, frameID)
		contentType := fileHeader.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "image/jpeg"
		}

		if _, err := s.s3Client.UploadBytes(key, data, contentType); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"filename":   fileHeader.Filename,
				"error":      err.Error(),
			}).Error("Failed to upload frame to object storage")
			response.Rejected = append(response.Rejected, fileHeader.Filename)
			continue
		}

		id, err := s.utils.NewULIDFromTimestamp(time.Now())
		if err != nil {
			return frame.FrameUploadResponse{}, err
		}

		upload := entity.UploadedFrame{
			ID:          id,
			SessionID:   sessionID,
			FrameID:     frameID,
			ImagePath:   key,
			ContentType: contentType,
			SizeBytes:   fileHeader.Size,
		}

		if err := client.Frame.RegisterUpload(ctx, upload); err != nil {
			return frame.FrameUploadResponse{}, err
		}

		response.Accepted = append(response.Accepted, frameID)
	}

	if len(response.Accepted) == 0 {
		return frame.FrameUploadResponse{}, frame.ErrNoValidFrames
	}

	if err := s.syncSessionStats(ctx, sessionID); err != nil {
		return frame.FrameUploadResponse{}, err
	}

	return response, nil
}

func (s *frameService) ProcessFrame(ctx context.Context, sessionID, frameID string) (frame.ProcessedFrameResponse, error) {
	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.ProcessedFrameResponse{}, err
	}

	agg := s.aggregatorFor(sessionID)
	if !agg.TryBeginFrame(frameID) {
		return frame.ProcessedFrameResponse{}, frame.ErrFrameAlreadyProcessing
	}
	defer agg.FinishFrame(frameID)

	pf, err := s.processOne(ctx, agg, sessionID, frameID)
	if err != nil {
		return frame.ProcessedFrameResponse{}, err
	}

	if err := s.syncSessionStats(ctx, sessionID); err != nil {
		return frame.ProcessedFrameResponse{}, err
	}

	return makeProcessedFrameResponse(pf), nil
}

// processOne runs the full per-frame pipeline: GPS match, inference,
// annotation when predictions exist, then a transactional upsert of the
// result. The caller owns the pending slot for the frame.
func (s *frameService) processOne(ctx context.Context, agg *Aggregator, sessionID, frameID string) (entity.ProcessedFrame, error) {
	requestID := contextPkg.GetRequestID(ctx)

	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return entity.ProcessedFrame{}, err
	}

	upload, err := client.Frame.GetUpload(ctx, sessionID, frameID)
	if err != nil {
		return entity.ProcessedFrame{}, err
	}

	fixes, err := client.Gps.GetFixesBySession(ctx, sessionID)
	if err != nil {
		return entity.ProcessedFrame{}, err
	}
	if len(fixes) == 0 {
		return entity.ProcessedFrame{}, frame.ErrGpsLogMissing
	}

	fix, matched := gpsPkg.Match(frameID, fixes)
	if !matched {
		agg.MarkNoGps(frameID)
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"frame_id":   frameID,
		}).Warn("No GPS fix within tolerance, frame skipped")
		return entity.ProcessedFrame{}, frame.ErrNoGpsMatch
	}

	imageData, err := s.s3Client.DownloadFile(upload.ImagePath)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"session_id": sessionID,
			"frame_id":   frameID,
			"error":      err.Error(),
		}).Error("Failed to download frame from object storage")
		return entity.ProcessedFrame{}, err
	}

	detection, err := s.roboflowClient.Detect(ctx, imageData, frameID)
	if err != nil {
		return entity.ProcessedFrame{}, err
	}

	hasCrack := len(detection.Predictions) > 0

	// A render or annotated-upload failure degrades to the original image
	// reference rather than losing the detection.
	processedPath := ""
	if hasCrack {
		annotated, err := annotate.Draw(imageData, detection.Predictions, s.log)
		if err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"frame_id":   frameID,
				"error":      err.Error(),
			}).Warn("Annotation failed, keeping original image reference")
		} else {
			key := processedKey(sessionID, frameID)
			if _, err := s.s3Client.UploadBytes(key, annotated, "image/jpeg"); err != nil {
				s.log.WithFields(logrus.Fields{
					"request_id": requestID,
					"session_id": sessionID,
					"frame_id":   frameID,
					"error":      err.Error(),
				}).Warn("Failed to upload annotated frame, keeping original image reference")
			} else {
				processedPath = key
			}
		}
	}

	id, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		return entity.ProcessedFrame{}, err
	}

	pf := entity.ProcessedFrame{
		ID:                 id,
		SessionID:          sessionID,
		FrameID:            frameID,
		ImagePath:          upload.ImagePath,
		ProcessedImagePath: processedPath,
		Latitude:           fix.Latitude,
		Longitude:          fix.Longitude,
		Predictions:        detection.Predictions,
		HasCrack:           hasCrack,
		CreatedAt:          time.Now(),
	}

	if confidence, ok := detection.PrimaryConfidence(); ok {
		pf.Confidence = &confidence
		pf.Class = detection.Predictions[0].Class
	}

	txClient, err := s.frameRepository.NewClient(true)
	if err != nil {
		return entity.ProcessedFrame{}, err
	}

	if err := txClient.Frame.UpsertProcessedFrame(ctx, pf); err != nil {
		txClient.Rollback()
		return entity.ProcessedFrame{}, err
	}

	if err := txClient.Commit(); err != nil {
		return entity.ProcessedFrame{}, err
	}

	agg.RecordResult(pf)

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"frame_id":   frameID,
		"has_crack":  hasCrack,
	}).Info("Frame processed")

	return pf, nil
}

func (s *frameService) ProcessAll(ctx context.Context, sessionID string) (frame.BatchProcessResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.BatchProcessResponse{}, err
	}

	agg := s.aggregatorFor(sessionID)
	if !agg.TryBeginBatch() {
		return frame.BatchProcessResponse{}, frame.ErrBatchAlreadyRunning
	}
	defer agg.EndBatch()

	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return frame.BatchProcessResponse{}, err
	}

	uploads, err := client.Frame.GetUploadsBySession(ctx, sessionID)
	if err != nil {
		return frame.BatchProcessResponse{}, err
	}
	if len(uploads) == 0 {
		return frame.BatchProcessResponse{}, frame.ErrNoValidFrames
	}

	fixes, err := client.Gps.GetFixesBySession(ctx, sessionID)
	if err != nil {
		return frame.BatchProcessResponse{}, err
	}
	if len(fixes) == 0 {
		return frame.BatchProcessResponse{}, frame.ErrGpsLogMissing
	}

	sortUploadsByFrameSecond(uploads)

	// Results keep frame order regardless of which worker finished first.
	results := make([]frame.BatchFrameResult, len(uploads))

	type job struct {
		index  int
		upload entity.UploadedFrame
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for worker := 0; worker < s.batchWorkers; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = s.processBatchFrame(ctx, agg, sessionID, j.upload.FrameID)
			}
		}()
	}

	for i, upload := range uploads {
		jobs <- job{index: i, upload: upload}
	}
	close(jobs)
	wg.Wait()

	processed, failed := 0, 0
	for _, result := range results {
		switch result.Outcome {
		case frame.BatchOutcomeProcessed:
			processed++
		case frame.BatchOutcomeFailed:
			failed++
		}
	}
	detections := agg.Snapshot(len(uploads)).Detections

	if err := s.syncSessionStats(ctx, sessionID); err != nil {
		return frame.BatchProcessResponse{}, err
	}

	if failed == 0 {
		if err := s.sessionService.CompleteSession(ctx, sessionID); err != nil {
			return frame.BatchProcessResponse{}, err
		}
	}

	s.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"session_id": sessionID,
		"total":      len(uploads),
		"processed":  processed,
		"failed":     failed,
	}).Info("Batch processing finished")

	return frame.BatchProcessResponse{
		SessionID:  sessionID,
		Processed:  processed,
		Detections: detections,
		Frames:     results,
	}, nil
}

// processBatchFrame classifies one frame's outcome for the batch report.
// Failures are isolated: an error here never aborts the run.
func (s *frameService) processBatchFrame(ctx context.Context, agg *Aggregator, sessionID, frameID string) frame.BatchFrameResult {
	result := frame.BatchFrameResult{FrameID: frameID}

	if agg.HasResult(frameID) {
		result.Outcome = frame.BatchOutcomeSkipped
		return result
	}

	// Frames already known to have no fix are not retried automatically.
	if agg.IsNoGps(frameID) {
		result.Outcome = frame.BatchOutcomeNoGps
		return result
	}

	if !agg.TryBeginFrame(frameID) {
		result.Outcome = frame.BatchOutcomeSkipped
		return result
	}
	defer agg.FinishFrame(frameID)

	if _, err := s.processOne(ctx, agg, sessionID, frameID); err != nil {
		if errors.Is(err, frame.ErrNoGpsMatch) {
			result.Outcome = frame.BatchOutcomeNoGps
			return result
		}
		result.Outcome = frame.BatchOutcomeFailed
		result.Error = err.Error()
		return result
	}

	result.Outcome = frame.BatchOutcomeProcessed
	return result
}

func (s *frameService) GetResults(ctx context.Context, sessionID string) (frame.ResultsResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.ResultsResponse{}, err
	}

	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return frame.ResultsResponse{}, err
	}

	processedFrames, err := client.Frame.GetProcessedFramesBySession(ctx, sessionID)
	if err != nil {
		return frame.ResultsResponse{}, err
	}

	results := make([]frame.ProcessedFrameResponse, 0, len(processedFrames))
	for _, pf := range processedFrames {
		response := makeProcessedFrameResponse(pf)

		if url, err := s.s3Client.PresignUrl(pf.ImagePath); err == nil {
			response.ImagePath = url
		} else {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"session_id": sessionID,
				"frame_id":   pf.FrameID,
				"error":      err.Error(),
			}).Warn("Failed to presign frame url")
		}

		if pf.ProcessedImagePath != "" {
			if url, err := s.s3Client.PresignUrl(pf.ProcessedImagePath); err == nil {
				response.ProcessedImagePath = url
			}
		}

		results = append(results, response)
	}

	return frame.ResultsResponse{
		SessionID: sessionID,
		Results:   results,
		Total:     len(results),
	}, nil
}

func (s *frameService) Progress(ctx context.Context, sessionID string) (frame.ProgressSnapshot, error) {
	if _, err := s.sessionService.GetSessionByID(ctx, sessionID); err != nil {
		return frame.ProgressSnapshot{}, err
	}

	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return frame.ProgressSnapshot{}, err
	}

	uploads, err := client.Frame.GetUploadsBySession(ctx, sessionID)
	if err != nil {
		return frame.ProgressSnapshot{}, err
	}

	return s.aggregatorFor(sessionID).Snapshot(len(uploads)), nil
}

// syncSessionStats recomputes session counters from the database so they
// always agree with the stored rows.
func (s *frameService) syncSessionStats(ctx context.Context, sessionID string) error {
	client, err := s.frameRepository.NewClient(false)
	if err != nil {
		return err
	}

	uploads, err := client.Frame.GetUploadsBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	processedFrames, err := client.Frame.GetProcessedFramesBySession(ctx, sessionID)
	if err != nil {
		return err
	}

	cracks := 0
	for _, pf := range processedFrames {
		if pf.HasCrack {
			cracks++
		}
	}

	return s.sessionService.SyncStats(ctx, sessionID, entity.SessionStats{
		TotalFrames:     len(uploads),
		ProcessedFrames: len(processedFrames),
		TotalCracks:     cracks,
	})
}

func makeProcessedFrameResponse(pf entity.ProcessedFrame) frame.ProcessedFrameResponse {
	return frame.ProcessedFrameResponse{
		FrameID:            pf.FrameID,
		ImagePath:          pf.ImagePath,
		ProcessedImagePath: pf.ProcessedImagePath,
		Latitude:           pf.Latitude,
		Longitude:          pf.Longitude,
		Confidence:         pf.Confidence,
		Class:              pf.Class,
		Predictions:        pf.Predictions,
		HasCrack:           pf.HasCrack,
	}
}

// Batch runs walk the track in capture order: ascending integer prefix,
// with any non-conforming names after, then lexicographic.
func sortUploadsByFrameSecond(uploads []entity.UploadedFrame) {
	sort.SliceStable(uploads, func(i, j int) bool {
		si, iOK := gpsPkg.FrameSecond(uploads[i].FrameID)
		sj, jOK := gpsPkg.FrameSecond(uploads[j].FrameID)
		if iOK && jOK && si != sj {
			return si < sj
		}
		if iOK != jOK {
			return iOK
		}
		return uploads[i].FrameID < uploads[j].FrameID
	})
}

func originalKey(sessionID, frameID string) string {
	return sessionID + "/" + frameID
}

func processedKey(sessionID, frameID string) string {
	ext := filepath.Ext(frameID)
	return sessionID + "/" + strings.TrimSuffix(frameID, ext) + "_processed" + ext
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}
