package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Credentials holds what a backend family needs to act on behalf of a user.
type Credentials struct {
	APIToken string
}

func (c Credentials) IsZero() bool {
	return c.APIToken == ""
}

// A Source resolves the credentials a user holds for a backend family
// ("ionq", "ibm", ...). Credentials are resolved per run and passed down the
// execution path explicitly; backends never read ambient secrets themselves.
type Source interface {
	Get(ctx context.Context, userID string, family string) (Credentials, error)
}

// Reloadable is implemented by sources whose backing data can change while
// the process runs, such as a token file rewritten by provisioning.
type Reloadable interface {
	Reload() error
}

type ErrCredentialsNotFound struct {
	UserID string
	Family string
}

func NewErrCredentialsNotFound(userID, family string) ErrCredentialsNotFound {
	return ErrCredentialsNotFound{UserID: userID, Family: family}
}

func (e ErrCredentialsNotFound) Error() string {
	return fmt.Sprintf("no %s credentials found for user %s", e.Family, e.UserID)
}

// FileSource reads per-user tokens from a YAML file of the shape:
//
//	users:
//	  alice:
//	    ionq:
//	      api_token: "..."
//	    ibm:
//	      api_token: "..."
//
// When a user has no token for a family, the source falls back to the
// process environment (e.g. IONQ_API_TOKEN), which is how single-tenant
// deployments configure a shared token.
type FileSource struct {
	mtx   sync.RWMutex
	viper *viper.Viper
}

func NewFileSource(path string) (*FileSource, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	return &FileSource{viper: v}, nil
}

func (s *FileSource) Get(ctx context.Context, userID string, family string) (Credentials, error) {
	s.mtx.RLock()
	token := s.viper.GetString(fmt.Sprintf("users.%s.%s.api_token", userID, family))
	s.mtx.RUnlock()

	if token == "" {
		token = tokenFromEnv(family)
	}
	if token == "" {
		return Credentials{}, NewErrCredentialsNotFound(userID, family)
	}
	return Credentials{APIToken: token}, nil
}

// Reload re-reads the backing file, picking up newly provisioned users
// without a restart.
func (s *FileSource) Reload() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.viper.ReadInConfig()
}

// EnvSource resolves tokens from the process environment only.
type EnvSource struct{}

func NewEnvSource() EnvSource {
	return EnvSource{}
}

func (s EnvSource) Get(ctx context.Context, userID string, family string) (Credentials, error) {
	token := tokenFromEnv(family)
	if token == "" {
		return Credentials{}, NewErrCredentialsNotFound(userID, family)
	}
	return Credentials{APIToken: token}, nil
}

func tokenFromEnv(family string) string {
	return os.Getenv(strings.ToUpper(family) + "_API_TOKEN")
}

// StaticSource serves a fixed map of user -> family -> credentials. Useful
// in tests and for simulators that need no credentials at all.
type StaticSource struct {
	users map[string]map[string]Credentials
}

func NewStaticSource(users map[string]map[string]Credentials) StaticSource {
	return StaticSource{users: users}
}

func (s StaticSource) Get(ctx context.Context, userID string, family string) (Credentials, error) {
	if families, ok := s.users[userID]; ok {
		if creds, ok := families[family]; ok {
			return creds, nil
		}
	}
	return Credentials{}, NewErrCredentialsNotFound(userID, family)
}

var _ Source = (*FileSource)(nil)
var _ Source = EnvSource{}
var _ Source = StaticSource{}
