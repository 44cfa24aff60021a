package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"festreg/internal/auth"
	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
)

const defaultRegistrationPrefix = "FEST"

// Notifier hands a notification to an asynchronous transport. It must not block.
type Notifier interface {
	Dispatch(n notify.Notification)
}

// SheetsExporter writes a table into a named spreadsheet tab.
type SheetsExporter interface {
	WriteTable(ctx context.Context, title string, rows [][]string) error
}

type Options struct {
	RegistrationPrefix string
	Codes              CodeConfig
	PasswordCost       int
	Sheets             SheetsExporter
	Now                func() time.Time
}

type Service struct {
	repo      repo.Repository
	log       *zerolog.Logger
	notifier  Notifier
	hasher    *auth.Hasher
	sheets    SheetsExporter
	now       func() time.Time
	regPrefix string

	codes     *CodeGenerator
	capacity  *CapacityManager
	conflicts *ConflictChecker
	teams     *TeamValidator
}

func NewService(r repo.Repository, logger *zerolog.Logger, notifier Notifier, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	prefix := opts.RegistrationPrefix
	if prefix == "" {
		prefix = defaultRegistrationPrefix
	}
	return &Service{
		repo:      r,
		log:       logger,
		notifier:  notifier,
		hasher:    auth.NewHasher(opts.PasswordCost),
		sheets:    opts.Sheets,
		now:       now,
		regPrefix: prefix,
		codes:     NewCodeGenerator(opts.Codes, logger),
		capacity:  NewCapacityManager(logger),
		conflicts: NewConflictChecker(),
		teams:     NewTeamValidator(),
	}
}

// Ready reports whether the backing store answers.
func (s *Service) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func (s *Service) notify(to string, tmpl notify.Template, data map[string]string) {
	if s.notifier == nil || to == "" {
		return
	}
	s.notifier.Dispatch(notify.Notification{To: to, Template: tmpl, Data: data})
}

func (s *Service) loadUser(ctx context.Context, st repo.Store, id string) (*model.User, error) {
	u, err := st.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errUserNotFound()
		}
		return nil, internalError(err)
	}
	return u, nil
}

func (s *Service) loadEvent(ctx context.Context, st repo.Store, id string) (*model.Event, error) {
	e, err := st.GetEventByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, errEventNotFound()
		}
		return nil, internalError(err)
	}
	return e, nil
}

// asEngineError passes engine errors through and wraps anything else as internal.
func asEngineError(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return internalError(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}
