package persist

import (
	"encoding/json"
	"sync"

	"github.com/go-go-golems/lampwick/pkg/i18n"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	usersKey   = "lampwick-users-db"
	sessionKey = "lampwick-session"
)

// User identifies an account. The email doubles as the persistence
// namespace.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userRecord struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrBadCredentials and ErrUserExists carry a localized message for the
// caller to surface.
var (
	ErrBadCredentials = errors.New("bad credentials")
	ErrUserExists     = errors.New("user already exists")
)

// Accounts manages registration, login sessions and the namespace the rest
// of the application persists under. While nobody is logged in, data lives
// in the guest namespace; logging in folds the guest data into the account.
type Accounts struct {
	mu        sync.RWMutex
	storage   Storage
	persister *Persister
	tr        i18n.Translator
	current   *User
}

func NewAccounts(storage Storage, persister *Persister, tr i18n.Translator) *Accounts {
	return &Accounts{
		storage:   storage,
		persister: persister,
		tr:        tr,
	}
}

// Restore loads a previously saved session, if any.
func (a *Accounts) Restore() {
	raw, ok, err := a.storage.Get(sessionKey)
	if err != nil || !ok {
		return
	}
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.Error().Err(err).Msg("stored session is corrupted, discarding it")
		_ = a.storage.Delete(sessionKey)
		return
	}
	a.mu.Lock()
	a.current = &user
	a.mu.Unlock()
}

// Current returns the logged-in user, or nil for a guest.
func (a *Accounts) Current() *User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

// Namespace is the key prefix the persister should use for the current
// identity.
func (a *Accounts) Namespace() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return GuestNamespace
	}
	return a.current.Email
}

func (a *Accounts) loadUsers() []userRecord {
	raw, ok, err := a.storage.Get(usersKey)
	if err != nil || !ok {
		return nil
	}
	var users []userRecord
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		log.Error().Err(err).Msg("user db is corrupted, resetting it")
		_ = a.storage.Delete(usersKey)
		return nil
	}
	return users
}

func (a *Accounts) saveUsers(users []userRecord) error {
	b, err := json.Marshal(users)
	if err != nil {
		return errors.Wrap(err, "failed to serialize user db")
	}
	return a.storage.Set(usersKey, string(b))
}

func (a *Accounts) startSession(user User) error {
	if err := a.persister.MergeGuest(user.Email); err != nil {
		log.Error().Err(err).Str("email", user.Email).Msg("failed to fold guest data into account")
	}
	b, err := json.Marshal(user)
	if err != nil {
		return errors.Wrap(err, "failed to serialize session")
	}
	if err := a.storage.Set(sessionKey, string(b)); err != nil {
		return err
	}
	a.mu.Lock()
	a.current = &user
	a.mu.Unlock()
	return nil
}

// Login authenticates against the user db and opens a session. Guest data
// accumulated before logging in is merged into the account.
func (a *Accounts) Login(email, password string) (*User, error) {
	for _, rec := range a.loadUsers() {
		if rec.Email == email && rec.Password == password {
			user := User{Name: rec.Name, Email: rec.Email}
			if err := a.startSession(user); err != nil {
				return nil, err
			}
			log.Debug().Str("email", email).Msg("user logged in")
			return &user, nil
		}
	}
	return nil, errors.Wrap(ErrBadCredentials, a.tr.T("loginError"))
}

// Register creates an account, then behaves like Login.
func (a *Accounts) Register(name, email, password string) (*User, error) {
	users := a.loadUsers()
	for _, rec := range users {
		if rec.Email == email {
			return nil, errors.Wrap(ErrUserExists, a.tr.T("registerErrorUserExists"))
		}
	}
	users = append(users, userRecord{Name: name, Email: email, Password: password})
	if err := a.saveUsers(users); err != nil {
		return nil, err
	}
	user := User{Name: name, Email: email}
	if err := a.startSession(user); err != nil {
		return nil, err
	}
	log.Debug().Str("email", email).Msg("user registered")
	return &user, nil
}

// Logout drops the session. Account data stays under its namespace.
func (a *Accounts) Logout() error {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
	return a.storage.Delete(sessionKey)
}

// DeleteAccount removes the logged-in user's record and every stored bundle
// under their namespace, then logs out. A guest has no account to delete.
func (a *Accounts) DeleteAccount() error {
	user := a.Current()
	if user == nil {
		return errors.New("not logged in")
	}

	users := a.loadUsers()
	kept := users[:0:0]
	for _, rec := range users {
		if rec.Email != user.Email {
			kept = append(kept, rec)
		}
	}
	if err := a.saveUsers(kept); err != nil {
		return err
	}
	if err := a.storage.Delete(dataKey(user.Email)); err != nil {
		return err
	}
	if err := a.storage.Delete(cloudKey(user.Email)); err != nil {
		return err
	}
	log.Debug().Str("email", user.Email).Msg("account deleted")
	return a.Logout()
}
