package quoll

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quolldb/quoll/credential"
	"github.com/quolldb/quoll/store"
)

// userRecord is the credential document kept in the internal user map,
// keyed by username. A database with a non-empty user map is secured and
// must be opened with matching credentials.
type userRecord struct {
	Username  string `json:"username"`
	Hash      string `json:"hash"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// hasUserMap checks for the user map without creating it. OpenMap would
// allocate the namespace, turning an unsecured store into a secured one as
// a side effect.
func hasUserMap(ctx context.Context, st store.Store) (bool, error) {
	names, err := st.MapNames(ctx)
	if err != nil {
		return false, fmt.Errorf("list map names: %w", err)
	}
	for _, name := range names {
		if name == userMapName {
			return true, nil
		}
	}
	return false, nil
}

// bootstrapCredentials reconciles the supplied credentials with the
// store's user map during Build. It returns true when a new credential
// record was created (the caller must commit to persist it).
func bootstrapCredentials(ctx context.Context, st store.Store, hasher *credential.Hasher, username, password string, readOnly bool) (bool, error) {
	secured, err := hasUserMap(ctx, st)
	if err != nil {
		return false, err
	}

	if username == "" && password == "" {
		if secured {
			return false, ErrCredentialsRequired
		}
		return false, nil
	}
	if username == "" || password == "" {
		return false, fmt.Errorf("%w: username and password must both be provided", ErrInvalidCredentials)
	}

	m, err := st.OpenMap(ctx, userMapName)
	if err != nil {
		return false, fmt.Errorf("open user map: %w", err)
	}

	size, err := m.Size(ctx)
	if err != nil {
		return false, fmt.Errorf("read user map: %w", err)
	}

	if size == 0 {
		if readOnly {
			return false, fmt.Errorf("create credential record: %w", store.ErrReadOnly)
		}

		hash, err := hasher.Hash(password)
		if err != nil {
			return false, fmt.Errorf("hash password: %w", err)
		}

		now := time.Now().Unix()
		record := userRecord{
			Username:  username,
			Hash:      hash,
			CreatedAt: now,
			UpdatedAt: now,
		}
		data, err := json.Marshal(record)
		if err != nil {
			return false, fmt.Errorf("encode credential record: %w", err)
		}
		if err := m.Put(ctx, username, data); err != nil {
			return false, fmt.Errorf("write credential record: %w", err)
		}
		return true, nil
	}

	ok, err := verifyUser(ctx, m, hasher, username, password)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrInvalidCredentials
	}
	return false, nil
}

// validateUserCredential is the pure credential query behind
// DB.ValidateUser. On an unsecured database only the empty pair is valid.
func validateUserCredential(ctx context.Context, st store.Store, hasher *credential.Hasher, username, password string) (bool, error) {
	secured, err := hasUserMap(ctx, st)
	if err != nil {
		return false, err
	}
	if !secured {
		return username == "" && password == "", nil
	}
	if username == "" || password == "" {
		return false, nil
	}

	m, err := st.OpenMap(ctx, userMapName)
	if err != nil {
		return false, fmt.Errorf("open user map: %w", err)
	}
	return verifyUser(ctx, m, hasher, username, password)
}

func verifyUser(ctx context.Context, m store.Map, hasher *credential.Hasher, username, password string) (bool, error) {
	data, ok, err := m.Get(ctx, username)
	if err != nil {
		return false, fmt.Errorf("read credential record: %w", err)
	}
	if !ok {
		return false, nil
	}

	var record userRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return false, fmt.Errorf("decode credential record: %w", err)
	}
	return hasher.Verify(password, record.Hash)
}
