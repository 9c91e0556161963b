/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/zalando/go-keyring"
)

// Keys under which secrets are kept in the OS keyring.
const (
	keyringService = "shaperounder"

	SecretPGPassword = "pg_password"
	SecretAuth       = "server_auth_secret"
	SecretToken      = "backend_token"
)

// SecretStore abstracts the keyring, so we can stub in tests.
type SecretStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring is the SecretStore backed by the OS keychain via github.com/zalando/go-keyring.
type Keyring struct{}

func (Keyring) Get(key string) (string, error) {
	v, err := keyring.Get(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (Keyring) Set(key, value string) error { return keyring.Set(keyringService, key, value) }

func (Keyring) Delete(key string) error {
	err := keyring.Delete(keyringService, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ResolveDSN adds the keyring password to a PostgreSQL URL that carries a user but no
// password. DSNs in key=value form are returned unchanged.
func ResolveDSN(dsn string, secrets SecretStore) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		return dsn, nil
	}
	if u.User == nil {
		return dsn, nil
	}
	if _, has := u.User.Password(); has {
		return dsn, nil
	}
	pw, err := secrets.Get(SecretPGPassword)
	if err != nil {
		return "", fmt.Errorf("read postgres password from keyring: %w", err)
	}
	if pw == "" {
		return dsn, nil
	}
	u.User = url.UserPassword(u.User.Username(), pw)
	return u.String(), nil
}
