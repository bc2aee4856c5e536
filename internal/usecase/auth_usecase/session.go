package auth

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"
)

// refresh tokenが使えない（期限切れ・失効・使用済み・不明）
var ErrInvalidRefreshToken = errors.New("invalid refresh token")

// SessionUsecaseはリフレッシュ（ローテーション）とログアウト。
type SessionUsecase struct {
	userRepo   repository.UserRepository
	rtRepo     repository.RefreshTokenRepository
	issuer     AccessTokenIssuer
	idGen      IDGenerator
	clock      Clock
	refreshTTL time.Duration
}

// DI
func NewSessionUsecase(
	userRepo repository.UserRepository,
	rtRepo repository.RefreshTokenRepository,
	issuer AccessTokenIssuer,
	idGen IDGenerator,
	clock Clock,
	refreshTTL time.Duration,
) *SessionUsecase {
	return &SessionUsecase{
		userRepo:   userRepo,
		rtRepo:     rtRepo,
		issuer:     issuer,
		idGen:      idGen,
		clock:      clock,
		refreshTTL: refreshTTL,
	}
}

type RefreshOutput struct {
	Token JwtAccessToken `json:"token"`
}

type RefreshSideEffect struct {
	PlainRefreshToken string
}

// 使い捨てのrefresh tokenを検証して、新しいaccess/refreshのペアを出す。
func (u *SessionUsecase) Refresh(ctx context.Context, plainRefresh string, userAgent string) (RefreshOutput, RefreshSideEffect, error) {
	var out RefreshOutput
	var side RefreshSideEffect

	if plainRefresh == "" {
		return out, side, ErrInvalidRefreshToken
	}

	stored, err := u.rtRepo.FindByTokenHash(ctx, hashRefreshToken(plainRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return out, side, ErrInvalidRefreshToken
		}
		return out, side, err
	}

	now := u.clock.Now()

	//期限切れ・失効・再利用はすべて拒否
	if now.After(stored.ExpiresAt) || stored.RevokedAt != nil || stored.UsedAt != nil {
		return out, side, ErrInvalidRefreshToken
	}

	user, err := u.userRepo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return out, side, ErrInvalidRefreshToken
		}
		return out, side, err
	}
	if !user.IsActive {
		return out, side, ErrUserInactive
	}

	//使用済みの印（ローテーション）
	if err := u.rtRepo.MarkUsed(ctx, stored.ID, now); err != nil {
		return out, side, err
	}

	accessToken, accessExp, err := u.issuer.Issue(user.ID, user.Role, user.TokenVersion, now)
	if err != nil {
		return out, side, err
	}

	newPlain, err := generateSecureToken(32)
	if err != nil {
		return out, side, err
	}

	next := &model.RefreshToken{
		ID:        u.idGen.NewID(),
		UserID:    user.ID,
		TokenHash: hashRefreshToken(newPlain),
		UserAgent: userAgent,
		ExpiresAt: now.Add(u.refreshTTL),
		CreatedAt: now,
	}
	if err := u.rtRepo.Create(ctx, next); err != nil {
		return out, side, err
	}

	out.Token = JwtAccessToken{
		AccessToken:  accessToken,
		ExpiresIn:    int(accessExp.Sub(now).Seconds()),
		TokenVersion: user.TokenVersion,
	}
	side.PlainRefreshToken = newPlain
	return out, side, nil
}

// Logoutは渡されたrefresh tokenを失効させる。
// トークンが見つからなくてもエラーにしない（すでに無効なら目的は達成済み）。
func (u *SessionUsecase) Logout(ctx context.Context, plainRefresh string) error {
	if plainRefresh == "" {
		return nil
	}

	stored, err := u.rtRepo.FindByTokenHash(ctx, hashRefreshToken(plainRefresh))
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		return err
	}

	return u.rtRepo.Revoke(ctx, stored.ID, u.clock.Now())
}
