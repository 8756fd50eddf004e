package session

import (
	"fmt"

	"go.uber.org/zap"
)

// Resume loads a previously saved session from v into s. It reports
// whether a session was restored.
func Resume(s *Store, v Vault) (bool, error) {
	sess, err := v.Load()
	if err != nil {
		return false, fmt.Errorf("loading saved session: %w", err)
	}
	if sess == nil || sess.Address == "" || sess.AuthToken == "" {
		return false, nil
	}
	s.Set(*sess)
	return true, nil
}

// Persist mirrors every transition of s into v. Vault failures are logged
// and otherwise ignored.
func Persist(s *Store, v Vault, log *zap.SugaredLogger) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s.OnChange(func(c Change) {
		var err error
		if c.Present {
			err = v.Save(c.Snapshot.Session)
		} else {
			err = v.Delete()
		}
		if err != nil {
			log.Warnw("session vault update failed", "error", err)
		}
	})
}
