package auth

import (
	"context"
	"fmt"

	"promoledger/config"
	"promoledger/internal/domain"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// NewFirebaseApp initializes the Admin SDK from a service account file, or from
// application default credentials when no file is configured.
func NewFirebaseApp(ctx context.Context, cfg *config.FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	return app, nil
}

// FirebaseVerifier verifies Firebase ID tokens. Role and business come from
// custom claims set by the identity service; users without a role are customers.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Principal, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return principalFromClaims(token.UID, token.Claims), nil
}

func principalFromClaims(uid string, claims map[string]interface{}) *Principal {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	role := str("role")
	if role == "" {
		role = domain.RoleCustomer
	}
	return &Principal{
		UserID:     uid,
		Email:      str("email"),
		Role:       role,
		BusinessID: str("business_id"),
	}
}
