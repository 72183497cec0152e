// Package accounts implements signup, login, session rotation and user
// lookup. Every failure leaves the package as an *apperr.Error.
package accounts

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/geocoder89/coursehub/internal/actorctx"
	"github.com/geocoder89/coursehub/internal/apperr"
	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/domain/job"
	"github.com/geocoder89/coursehub/internal/domain/session"
	"github.com/geocoder89/coursehub/internal/domain/user"
	"github.com/geocoder89/coursehub/internal/jobs"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/security"
	"github.com/geocoder89/coursehub/internal/utils"
	"github.com/geocoder89/coursehub/internal/validation"
)

const (
	msgUserExists       = "User already exists"
	msgCreateFailed     = "Could not create user"
	msgUserNotFound     = "User not found"
	msgBadCredentials   = "Email or password is incorrect."
	msgLookupFailed     = "Could not load user"
	msgSessionFailed    = "Could not start session"
	msgInvalidRefresh   = "Invalid refresh token"
	msgNotAllowed       = "You are not allowed to view this user"
	msgLoginRequired    = "Authentication required"
	defaultStoreTimeout = 3 * time.Second
)

type UserStore interface {
	Create(ctx context.Context, in user.NewUser) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type SessionStore interface {
	Save(ctx context.Context, rt session.RefreshToken) error
	Rotate(ctx context.Context, oldID, oldHash string, next session.RefreshToken) (string, error)
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type JobEnqueuer interface {
	Create(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type Hasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) error
}

type Deps struct {
	Users    UserStore
	Sessions SessionStore
	Jobs     JobEnqueuer // optional
	Hasher   Hasher
	Tokens   *auth.Manager
	Log      *slog.Logger
	Prom     *observability.Prom
	// StoreTimeout bounds every store call; zero means 3s.
	StoreTimeout time.Duration
}

type Service struct {
	users    UserStore
	sessions SessionStore
	jobs     JobEnqueuer
	hasher   Hasher
	tokens   *auth.Manager
	log      *slog.Logger
	prom     *observability.Prom
	timeout  time.Duration
}

func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.StoreTimeout <= 0 {
		d.StoreTimeout = defaultStoreTimeout
	}
	return &Service{
		users:    d.Users,
		sessions: d.Sessions,
		jobs:     d.Jobs,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		log:      d.Log,
		prom:     d.Prom,
		timeout:  d.StoreTimeout,
	}
}

// Session is what a successful login or refresh hands back.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             user.User
}

// SignUp validates, rejects known emails, hashes the password and creates the
// user. The store's uniqueness check is authoritative: a lost race still
// comes back as DuplicateUser.
func (s *Service) SignUp(ctx context.Context, in validation.SignUpInput) (user.User, error) {
	in, err := validation.SignUp(in)
	if err != nil {
		s.prom.IncSignup("invalid")
		return user.User{}, err
	}

	_, err = s.getByEmail(ctx, in.Email)
	switch {
	case err == nil:
		s.prom.IncSignup("duplicate")
		return user.User{}, apperr.New(apperr.DuplicateUser, msgUserExists)
	case !errors.Is(err, user.ErrNotFound):
		s.prom.IncSignup("error")
		s.log.ErrorContext(ctx, "signup lookup failed", "err", err)
		return user.User{}, apperr.Wrap(apperr.Persistence, msgCreateFailed, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.prom.IncSignup("error")
		return user.User{}, apperr.Wrap(apperr.Persistence, msgCreateFailed, err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	u, err := s.users.Create(sctx, user.NewUser{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
	})
	cancel()
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			s.prom.IncSignup("duplicate")
			return user.User{}, apperr.New(apperr.DuplicateUser, msgUserExists)
		}
		s.prom.IncSignup("error")
		s.log.ErrorContext(ctx, "signup create failed", "err", err)
		return user.User{}, apperr.Wrap(apperr.Persistence, msgCreateFailed, err)
	}

	s.prom.IncSignup("created")
	s.log.InfoContext(ctx, "user signed up", "user_id", u.ID)
	s.enqueueWelcome(ctx, u)

	return u, nil
}

// enqueueWelcome is best effort; the account already exists either way.
func (s *Service) enqueueWelcome(ctx context.Context, u user.User) {
	if s.jobs == nil {
		return
	}

	req, err := jobs.WelcomeEmail(u, actorctx.RequestIDFrom(ctx))
	if err != nil {
		s.log.WarnContext(ctx, "welcome job encode failed", "user_id", u.ID, "err", err)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.jobs.Create(sctx, req); err != nil {
		s.log.WarnContext(ctx, "welcome job enqueue failed", "user_id", u.ID, "err", err)
	}
}

// Login checks credentials and opens a session. Unknown emails and wrong
// passwords are reported identically.
func (s *Service) Login(ctx context.Context, in validation.LoginInput) (Session, error) {
	in, err := validation.Login(in)
	if err != nil {
		s.prom.IncLogin("invalid")
		return Session{}, err
	}

	u, err := s.getByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.IncLogin("rejected")
			return Session{}, apperr.New(apperr.Unauthorized, msgBadCredentials)
		}
		s.prom.IncLogin("error")
		return Session{}, apperr.Wrap(apperr.Persistence, msgSessionFailed, err)
	}

	if err := s.hasher.Verify(u.PasswordHash, in.Password); err != nil {
		s.prom.IncLogin("rejected")
		if !errors.Is(err, security.ErrMismatch) {
			s.log.WarnContext(ctx, "password verify failed", "user_id", u.ID, "err", err)
		}
		return Session{}, apperr.New(apperr.Unauthorized, msgBadCredentials)
	}

	sess, err := s.issue(ctx, u, func(ctx context.Context, rt session.RefreshToken) error {
		return s.sessions.Save(ctx, rt)
	})
	if err != nil {
		s.prom.IncLogin("error")
		return Session{}, err
	}

	s.prom.IncLogin("ok")
	return sess, nil
}

// Refresh exchanges a refresh token for a new pair. The old token is revoked
// in the same step, so replaying it fails.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Unauthorized, msgInvalidRefresh, err)
	}

	u, err := s.getByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Session{}, apperr.New(apperr.Unauthorized, msgInvalidRefresh)
		}
		return Session{}, apperr.Wrap(apperr.Persistence, msgSessionFailed, err)
	}

	oldHash := s.tokens.HashRefreshToken(rawRefresh)

	return s.issue(ctx, u, func(ctx context.Context, next session.RefreshToken) error {
		_, err := s.sessions.Rotate(ctx, claims.JTI, oldHash, next)
		switch {
		case errors.Is(err, session.ErrRefreshRejected):
			// A signed token that is no longer usable was presented again:
			// treat the whole token family as leaked.
			if rerr := s.sessions.RevokeAllForUser(ctx, u.ID); rerr != nil {
				s.log.WarnContext(ctx, "revoke sessions after refresh reuse failed", "user_id", u.ID, "err", rerr)
			} else {
				s.log.WarnContext(ctx, "refresh token reuse, sessions revoked", "user_id", u.ID)
			}
			return apperr.Wrap(apperr.Unauthorized, msgInvalidRefresh, err)
		case errors.Is(err, session.ErrRefreshNotFound):
			return apperr.Wrap(apperr.Unauthorized, msgInvalidRefresh, err)
		}
		return err
	})
}

// Logout revokes the refresh token. Unparseable or unknown tokens are
// ignored so logout never fails for the caller.
func (s *Service) Logout(ctx context.Context, rawRefresh string) error {
	if rawRefresh == "" {
		return nil
	}
	claims, err := s.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return nil
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.sessions.Revoke(sctx, claims.JTI); err != nil {
		s.log.WarnContext(ctx, "refresh revoke failed", "err", err)
		return apperr.Wrap(apperr.Persistence, "Could not end session", err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, u user.User, store func(context.Context, session.RefreshToken) error) (Session, error) {
	subject := auth.Subject{
		UserID:    u.ID,
		Email:     u.Email,
		Roles:     u.Roles,
		CompanyID: utils.Deref(u.CompanyID),
	}

	access, err := s.tokens.GenerateAccessToken(subject)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Persistence, msgSessionFailed, err)
	}

	raw, jti, exp, err := s.tokens.GenerateRefreshToken(subject)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.Persistence, msgSessionFailed, err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err = store(sctx, session.RefreshToken{
		ID:        jti,
		UserID:    u.ID,
		TokenHash: s.tokens.HashRefreshToken(raw),
		ExpiresAt: exp,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) {
			return Session{}, ae
		}
		return Session{}, apperr.Wrap(apperr.Persistence, msgSessionFailed, err)
	}

	return Session{AccessToken: access, RefreshToken: raw, RefreshExpiresAt: exp, User: u}, nil
}

// Lookup returns the user with in.UserID if actor may see it: the user
// themself, a platform admin, or a business admin of the user's company.
func (s *Service) Lookup(ctx context.Context, actor actorctx.Actor, in validation.LookupInput) (user.User, error) {
	if !actor.Authenticated() {
		return user.User{}, apperr.New(apperr.Unauthorized, msgLoginRequired)
	}

	in, err := validation.Lookup(in)
	if err != nil {
		return user.User{}, err
	}

	self := actor.UserID == in.UserID
	if !self && !actor.IsAdmin() && !actor.HasRole(user.RoleBusinessAdmin) {
		return user.User{}, apperr.New(apperr.Forbidden, msgNotAllowed)
	}

	u, err := s.getByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// business admins only learn about users of their own company
			if !self && !actor.IsAdmin() {
				return user.User{}, apperr.New(apperr.Forbidden, msgNotAllowed)
			}
			return user.User{}, apperr.New(apperr.NotFound, msgUserNotFound)
		}
		s.log.ErrorContext(ctx, "user lookup failed", "err", err)
		return user.User{}, apperr.Wrap(apperr.Persistence, msgLookupFailed, err)
	}

	if !self && !actor.CanManageCompany(utils.Deref(u.CompanyID)) {
		return user.User{}, apperr.New(apperr.Forbidden, msgNotAllowed)
	}

	return u, nil
}

// Me returns the caller's own record.
func (s *Service) Me(ctx context.Context, actor actorctx.Actor) (user.User, error) {
	return s.Lookup(ctx, actor, validation.LookupInput{UserID: actor.UserID})
}

func (s *Service) getByEmail(ctx context.Context, email string) (user.User, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.users.GetByEmail(sctx, email)
}

func (s *Service) getByID(ctx context.Context, id string) (user.User, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.users.GetByID(sctx, id)
}
