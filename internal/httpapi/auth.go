package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"patitas/backend/internal/domain"
	"patitas/backend/internal/store"
)

// Directory is the slice of the repository the AuthManager needs to
// authenticate accounts from both directories.
type Directory interface {
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetEmployeeByEmail(ctx context.Context, email string) (*domain.Employee, error)
	CreateCustomer(ctx context.Context, c domain.Customer) (*domain.Customer, error)
}

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	directory Directory
}

type storeClaims struct {
	jwtlib.RegisteredClaims
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	AccountType string `json:"account_type"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, directory Directory) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	return &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		directory: directory,
	}
}

var errInvalidCredentials = errors.New("invalid credentials")

// Login authenticates an email against both directories. The employee
// directory is checked first; an employee and a customer sharing an email
// resolve to the employee account.
func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, errInvalidCredentials
	}

	if employee, err := a.directory.GetEmployeeByEmail(ctx, email); err == nil {
		if !verifyPassword(employee.Password, req.Password) {
			return domain.LoginResponse{}, errInvalidCredentials
		}
		return a.issue(domain.Actor{
			ID:          employee.ID,
			Email:       employee.Email,
			Name:        employee.Name,
			Role:        domain.RoleEmployee,
			AccountType: domain.AccountTypeEmployee,
		})
	} else if !errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, err
	}

	customer, err := a.directory.GetCustomerByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	if err != nil {
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(customer.Password, req.Password) {
		return domain.LoginResponse{}, errInvalidCredentials
	}
	return a.issue(domain.Actor{
		ID:          customer.ID,
		Email:       customer.Email,
		Name:        customer.Name,
		Role:        customer.Role,
		AccountType: domain.AccountTypeCustomer,
	})
}

// Register creates a customer account with a freshly hashed password.
func (a *AuthManager) Register(ctx context.Context, req domain.RegisterRequest) (*domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: name and valid email required", store.ErrInvalid)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", store.ErrInvalid)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password")
	}

	return a.directory.CreateCustomer(ctx, domain.Customer{
		Name:     name,
		Email:    email,
		Password: hash,
		Phone:    strings.TrimSpace(req.Phone),
		Address:  strings.TrimSpace(req.Address),
		Role:     domain.RoleCustomer,
	})
}

func (a *AuthManager) issue(actor domain.Actor) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	claims := storeClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "patitas",
		},
		Email:       actor.Email,
		Name:        actor.Name,
		Role:        actor.Role,
		AccountType: actor.AccountType,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
		Name:        actor.Name,
		Role:        actor.Role,
		AccountType: actor.AccountType,
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &storeClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{
		ID:          sub,
		Email:       claims.Email,
		Name:        claims.Name,
		Role:        claims.Role,
		AccountType: claims.AccountType,
	}, nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

// HashPassword bcrypt-hashes a plaintext credential. Exported so startup
// credential migration and admin account creation share one scheme.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
