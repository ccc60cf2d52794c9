// Package serve runs a detection engine as a long-lived NDJSON server on a
// reader/writer pair, so an orchestration process can send one file per
// request without reloading rules.
package serve

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/praetorian-inc/vuescan/pkg/types"
	"go.uber.org/zap"
)

// Version is the server protocol version
const Version = "1.0.0"

// maxLineSize bounds one request line, file content included.
const maxLineSize = 64 * 1024 * 1024

// Detector is the engine surface the server drives. *vuescan.Engine
// implements it.
type Detector interface {
	Detect(filePath, content string, budget types.Budget) ([]*types.Finding, error)
	DetectUnlimited(filePath, content string) ([]*types.Finding, error)
	Rules() ([]*types.Rule, error)
	ResetCaches()
}

// Server manages the streaming detector
type Server struct {
	detector Detector
	stats    func() any
	budget   types.Budget
	logger   *zap.Logger
	encoder  *json.Encoder
	in       io.Reader
}

// incoming is one input line: a request, or the reason it could not be
// decoded.
type incoming struct {
	req Request
	err error
}

// NewServer creates a new streaming server. budget applies to requests
// that carry none. A nil logger disables logging.
func NewServer(d Detector, budget types.Budget, in io.Reader, out io.Writer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		detector: d,
		budget:   budget,
		logger:   logger.Named("serve"),
		encoder:  json.NewEncoder(out),
		in:       in,
	}
	return s
}

// SetStats sets the function answering "stats" requests. Without one they
// fail.
func (s *Server) SetStats(fn func() any) {
	s.stats = fn
}

// Run starts the server main loop. It returns nil when the input ends or a
// "close" request arrives, and ctx.Err() when ctx is cancelled. A line that
// is not a valid request gets a "decode" error and the loop continues.
func (s *Server) Run(ctx context.Context) error {
	s.sendReady()

	reqChan := make(chan incoming, 1)
	errChan := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var in incoming
			in.err = json.Unmarshal(line, &in.req)
			select {
			case reqChan <- in:
			case <-ctx.Done():
				return
			}
		}
		// nil at EOF
		errChan <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			// Drain any pending requests before handling EOF
			for {
				select {
				case in := <-reqChan:
					if s.handle(in) {
						return nil
					}
				default:
					if err != nil {
						s.sendError("decode", err.Error())
					}
					return nil
				}
			}
		case in := <-reqChan:
			if s.handle(in) {
				return nil
			}
		}
	}
}

func (s *Server) handle(in incoming) bool {
	if in.err != nil {
		s.logger.Warn("malformed request", zap.Error(in.err))
		s.sendError("decode", in.err.Error())
		return false
	}
	return s.processRequest(in.req)
}

// processRequest handles a single request and returns true if the server should exit
func (s *Server) processRequest(req Request) bool {
	switch req.Type {
	case "detect":
		s.handleDetect(req.Payload)
	case "detect_batch":
		s.handleDetectBatch(req.Payload)
	case "stats":
		s.handleStats()
	case "reset":
		s.detector.ResetCaches()
		s.send("reset", nil)
	case "close":
		return true
	default:
		s.sendError("unknown", "unknown request type: "+req.Type)
	}
	return false
}

func (s *Server) sendReady() {
	ready := ReadyData{Version: Version}
	if rules, err := s.detector.Rules(); err == nil {
		ready.Rules = len(rules)
	}
	s.send("ready", ready)
}

func (s *Server) handleDetect(payload json.RawMessage) {
	var p DetectPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("detect", err.Error())
		return
	}

	res := s.detect(p)
	if res.Error != "" {
		s.sendError("detect", res.Error)
		return
	}
	s.send("detect", res)
}

func (s *Server) handleDetectBatch(payload json.RawMessage) {
	var p DetectBatchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		s.sendError("detect_batch", err.Error())
		return
	}

	out := DetectBatchResult{Results: make([]DetectResult, 0, len(p.Items))}
	for _, item := range p.Items {
		out.Results = append(out.Results, s.detect(item))
	}
	s.send("detect_batch", out)
}

func (s *Server) handleStats() {
	if s.stats == nil {
		s.sendError("stats", "stats not available")
		return
	}
	s.send("stats", s.stats())
}

// detect runs one file. Errors are reported in the result, not returned,
// so one bad item does not fail a batch.
func (s *Server) detect(p DetectPayload) DetectResult {
	start := time.Now()

	var findings []*types.Finding
	var err error
	switch {
	case p.Unlimited:
		findings, err = s.detector.DetectUnlimited(p.File, p.Content)
	case p.Budget != nil:
		findings, err = s.detector.Detect(p.File, p.Content, *p.Budget)
	default:
		findings, err = s.detector.Detect(p.File, p.Content, s.budget)
	}
	if err != nil {
		s.logger.Warn("detect failed", zap.String("file", p.File), zap.Error(err))
		return DetectResult{File: p.File, Findings: []*types.Finding{}, Error: err.Error()}
	}

	s.logger.Debug("detect",
		zap.String("file", p.File),
		zap.Int("findings", len(findings)),
		zap.Duration("elapsed", time.Since(start)))
	return DetectResult{File: p.File, Findings: findings}
}

func (s *Server) send(reqType string, v any) {
	resp := Response{Success: true, Type: reqType}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			s.sendError(reqType, err.Error())
			return
		}
		resp.Data = data
	}
	if err := s.encoder.Encode(resp); err != nil {
		s.logger.Error("failed to write response", zap.String("type", reqType), zap.Error(err))
	}
}

func (s *Server) sendError(reqType, msg string) {
	if err := s.encoder.Encode(Response{
		Success: false,
		Type:    reqType,
		Error:   msg,
	}); err != nil {
		s.logger.Error("failed to write response", zap.String("type", reqType), zap.Error(err))
	}
}
