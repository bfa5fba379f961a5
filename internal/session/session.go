package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"smartattend/internal/capture"
	"smartattend/internal/credstore"
	"smartattend/internal/ledger"
	"smartattend/internal/matcher"
	"smartattend/internal/metrics"
	"smartattend/internal/notify"
	"smartattend/internal/qr"
	"smartattend/internal/report"
)

// Session is the authenticated operator's working context: a username and a
// role, established at login and discarded on close. It scopes every ledger
// view handed out during the run.
type Session struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Admin reports whether the session has the admin role.
func (s Session) Admin() bool {
	return strings.EqualFold(s.Role, "admin")
}

// Scan modes.
const (
	ModeFace = "face"
	ModeQR   = "qr"
)

// Scan states.
const (
	StateRunning   = "running"
	StateMatched   = "matched"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

var (
	// ErrScanActive is returned when a scan is started while another is
	// still running. One operator, one camera, one scan at a time.
	ErrScanActive = errors.New("a scan is already running")
	// ErrUnknownMode is returned for a scan mode that is neither face nor qr.
	ErrUnknownMode = errors.New("unknown scan mode")
)

// Status is a point-in-time snapshot of a scan for the surface to poll.
type Status struct {
	ID          string `json:"id"`
	Mode        string `json:"mode"`
	State       string `json:"state"`
	Identity    string `json:"identity,omitempty"`
	Error       string `json:"error,omitempty"`
	NotifyError string `json:"notify_error,omitempty"`
}

// Scan is one recognition session running as a cancellable task.
type Scan struct {
	id     string
	mode   string
	cancel context.CancelFunc
	done   chan struct{}

	mu          sync.Mutex
	state       string
	identity    string
	errMsg      string
	notifyError string
}

// ID returns the scan identifier.
func (sc *Scan) ID() string { return sc.id }

// Done is closed once the scan has reached a terminal state and the camera
// has been released.
func (sc *Scan) Done() <-chan struct{} { return sc.done }

// Status returns a snapshot of the scan.
func (sc *Scan) Status() Status {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return Status{
		ID:          sc.id,
		Mode:        sc.mode,
		State:       sc.state,
		Identity:    sc.identity,
		Error:       sc.errMsg,
		NotifyError: sc.notifyError,
	}
}

func (sc *Scan) set(state, identityName, errMsg, notifyErr string) {
	sc.mu.Lock()
	sc.state = state
	sc.identity = identityName
	sc.errMsg = errMsg
	sc.notifyError = notifyErr
	sc.mu.Unlock()
}

// Service orchestrates the attendance pipeline: login, recognition scans,
// ledger views, QR artifacts, PDF exports and notifications.
type Service struct {
	creds         *credstore.Store
	ledger        *ledger.Ledger
	sender        notify.Sender
	log           *logrus.Logger
	newCamera     func() capture.Source
	resolvers     map[string]matcher.Resolver
	frameInterval time.Duration
	qrDir         string

	mu     sync.Mutex
	scans  map[string]*Scan
	active *Scan
}

// NewService wires the pipeline together. newCamera builds a fresh capture
// source per scan so a previous scan can never leak its handle into the
// next one.
func NewService(
	creds *credstore.Store,
	led *ledger.Ledger,
	sender notify.Sender,
	log *logrus.Logger,
	newCamera func() capture.Source,
	face, qrResolver matcher.Resolver,
	frameInterval time.Duration,
	qrDir string,
) *Service {
	return &Service{
		creds:  creds,
		ledger: led,
		sender: sender,
		log:    log,
		resolvers: map[string]matcher.Resolver{
			ModeFace: face,
			ModeQR:   qrResolver,
		},
		newCamera:     newCamera,
		frameInterval: frameInterval,
		qrDir:         qrDir,
		scans:         make(map[string]*Scan),
	}
}

// Login verifies credentials and returns a session. There is deliberately
// no lockout or rate limiting; a failed attempt just fails.
func (s *Service) Login(username, password, role string) (Session, bool) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !s.creds.Verify(username, password, role) {
		s.log.WithField("username", username).Warn("login failed")
		return Session{}, false
	}
	return Session{Username: username, Role: role}, true
}

// Attendance returns the ledger view scoped to the session.
func (s *Service) Attendance(sess Session) ([]ledger.Record, error) {
	return s.ledger.Query(sess.Username, sess.Role)
}

// StartScan launches a recognition scan in the given mode and returns it
// immediately; the surface polls Status and may Cancel. Only one scan runs
// at a time.
func (s *Service) StartScan(mode string) (*Scan, error) {
	resolver, ok := s.resolvers[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, ErrScanActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	scan := &Scan{
		id:     uuid.NewString(),
		mode:   mode,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateRunning,
	}
	s.scans[scan.id] = scan
	s.active = scan
	s.mu.Unlock()

	metrics.ScansStarted.WithLabelValues(mode).Inc()
	s.log.WithFields(logrus.Fields{"scan": scan.id, "mode": mode}).Info("scan started")

	go s.runScan(ctx, scan, resolver)
	return scan, nil
}

// Scan returns the status of a known scan.
func (s *Service) Scan(id string) (Status, bool) {
	s.mu.Lock()
	scan, ok := s.scans[id]
	s.mu.Unlock()
	if !ok {
		return Status{}, false
	}
	return scan.Status(), true
}

// Cancel signals a scan to stop. The scan reports cancelled only after its
// camera has been released.
func (s *Service) Cancel(id string) bool {
	s.mu.Lock()
	scan, ok := s.scans[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	scan.cancel()
	return true
}

// scanOutcome is the result of one capture loop run.
type scanOutcome struct {
	identity  string
	matched   bool
	cancelled bool
	err       error
}

// runScan drives one capture loop to completion. The camera is released on
// every exit path before the scan reaches a terminal state.
func (s *Service) runScan(ctx context.Context, scan *Scan, resolver matcher.Resolver) {
	defer close(scan.done)
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()
	defer scan.cancel()

	outcome := s.captureLoop(ctx, resolver)

	switch {
	case outcome.cancelled:
		metrics.ScansCancelled.Inc()
		s.log.WithField("scan", scan.id).Info("scan cancelled")
		scan.set(StateCancelled, "", "", "")
	case outcome.err != nil:
		s.log.WithFields(logrus.Fields{"scan": scan.id, "error": outcome.err}).Warn("scan failed")
		scan.set(StateFailed, "", outcome.err.Error(), "")
	case outcome.matched:
		s.mark(scan, outcome.identity)
	}
}

// captureLoop polls the camera until the resolver produces an identity, the
// context is cancelled, or something breaks. The camera handle never
// escapes this function.
func (s *Service) captureLoop(ctx context.Context, resolver matcher.Resolver) scanOutcome {
	cam := s.newCamera()
	if err := cam.Open(ctx); err != nil {
		if ctx.Err() != nil {
			return scanOutcome{cancelled: true}
		}
		return scanOutcome{err: err}
	}
	defer cam.Close()

	for {
		if ctx.Err() != nil {
			return scanOutcome{cancelled: true}
		}
		frame, err := cam.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return scanOutcome{cancelled: true}
			}
			return scanOutcome{err: err}
		}
		metrics.FramesProcessed.Inc()

		name, ok, err := resolver.Resolve(ctx, frame)
		if err != nil {
			if ctx.Err() != nil {
				return scanOutcome{cancelled: true}
			}
			return scanOutcome{err: err}
		}
		if ok {
			return scanOutcome{identity: name, matched: true}
		}

		select {
		case <-ctx.Done():
			return scanOutcome{cancelled: true}
		case <-time.After(s.frameInterval):
		}
	}
}

// mark records the resolved identity and dispatches the notification. The
// append must land before anything else happens; a notification failure is
// reported on the scan but leaves the ledger record intact.
func (s *Service) mark(scan *Scan, identityName string) {
	ctx := context.Background()

	if err := s.ledger.Append(identityName, time.Now()); err != nil {
		s.log.WithFields(logrus.Fields{"scan": scan.id, "error": err}).Error("ledger append failed")
		scan.set(StateFailed, "", err.Error(), "")
		return
	}
	metrics.LedgerAppends.Inc()
	metrics.Matches.WithLabelValues(scan.mode).Inc()

	token, _ := s.creds.TokenFor(identityName)
	notifyErr := ""
	if err := s.sender.Send(ctx, "Attendance Marked", identityName+" has been marked present.", token); err != nil {
		metrics.NotifyFailures.Inc()
		s.log.WithFields(logrus.Fields{"scan": scan.id, "error": err}).Error("notification dispatch failed")
		notifyErr = err.Error()
	}

	s.log.WithFields(logrus.Fields{"scan": scan.id, "identity": identityName}).Info("attendance marked")
	scan.set(StateMatched, identityName, "", notifyErr)
}

// GenerateQR writes the QR artifact for an identity and returns its path.
func (s *Service) GenerateQR(identityName string) (string, error) {
	return qr.Generate(identityName, s.qrDir)
}

// ExportPDF writes the session's ledger view to a PDF at path.
func (s *Service) ExportPDF(sess Session, path string) error {
	records, err := s.Attendance(sess)
	if err != nil {
		return err
	}
	return report.WritePDF(records, path)
}

// Notify sends an operator-composed notification. With a recipient whose
// token is on file it goes to that device; a recipient without a token
// falls back to the broadcast topic, as does an empty recipient.
func (s *Service) Notify(ctx context.Context, title, body, recipient string) error {
	token := ""
	if recipient != "" {
		t, ok := s.creds.TokenFor(recipient)
		if !ok {
			s.log.WithField("recipient", recipient).Warn("no token for recipient, broadcasting instead")
		} else {
			token = t
		}
	}
	if err := s.sender.Send(ctx, title, body, token); err != nil {
		metrics.NotifyFailures.Inc()
		return err
	}
	return nil
}
