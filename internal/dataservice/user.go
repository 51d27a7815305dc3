package dataservice

import (
	"context"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

func (ds *DataService) decodeUser(row store.Row) (domain.User, error) {
	out, err := codec.Decode[domain.User](ds.codec, row)
	if err != nil {
		return domain.User{}, err
	}
	out.ID, out.Ver = row.ID, row.Ver
	return out, nil
}

// ListUsers is grounded on original_source/data_service.py's
// DataServiceUser.get_users.
func (ds *DataService) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := ds.users.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		u, err := ds.decodeUser(r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (ds *DataService) GetUser(ctx context.Context, id string) (domain.User, error) {
	row, err := ds.users.SelectOne(ctx, nil, id, store.ColAll)
	if err != nil {
		return domain.User{}, err
	}
	return ds.decodeUser(row)
}

// checkSystemUser is grounded line-for-line on
// DataServiceUser.save_user_check_system_user.
func checkSystemUser(user domain.User, users []domain.User) error {
	var systemUser *domain.User
	var existing *domain.User
	for i := range users {
		if users[i].IsSystem {
			systemUser = &users[i]
		}
		if users[i].ID == user.ID {
			existing = &users[i]
		}
	}
	if systemUser == nil {
		return nil // no current system user, so no checks needed
	}
	if existing == nil { // new user
		if user.IsSystem {
			return domain.ErrSystemUserExists
		}
		return nil
	}
	// existing user
	if existing.ID == systemUser.ID {
		if !user.IsSystem {
			return domain.ErrSystemUserImmutable
		}
		return nil
	}
	if user.IsSystem {
		return domain.ErrSystemUserImmutable
	}
	return nil
}

// checkDuplicateUsername is grounded on
// DataServiceUser.save_user_check_duplicate_username.
func checkDuplicateUsername(user domain.User, users []domain.User) error {
	normalized := user.NormalizedUsername()
	for _, other := range users {
		if other.NormalizedUsername() != normalized {
			continue
		}
		if other.ID == user.ID {
			continue
		}
		return domain.ErrDuplicateUsername
	}
	return nil
}

// SaveUser is grounded on DataServiceUser.save_user: validate, then
// enforce the at-most-one-system-user and unique-username invariants of
// spec.md §4.4 before writing.
func (ds *DataService) SaveUser(ctx context.Context, user domain.User) (domain.User, error) {
	if errs := user.Validate(); len(errs) > 0 {
		return domain.User{}, domain.Invalid("User", errs)
	}
	users, err := ds.ListUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	if err := checkSystemUser(user, users); err != nil {
		return domain.User{}, err
	}
	if err := checkDuplicateUsername(user, users); err != nil {
		return domain.User{}, err
	}
	row, err := codec.Encode(user, nil)
	if err != nil {
		return domain.User{}, err
	}
	saved, err := upsertRow(ctx, ds.users, user.ID, user.Ver, row)
	if err != nil {
		return domain.User{}, err
	}
	return ds.decodeUser(saved)
}

// DeleteUser is grounded on DataServiceUser.delete_user: the system user
// cannot be deleted, and delete is otherwise a no-op if the user is
// already gone.
func (ds *DataService) DeleteUser(ctx context.Context, id string, ver int64) error {
	noop, err := ds.deleteCheckNotExist(ctx, ds.users, "User", id)
	if err != nil || noop {
		return err
	}
	user, err := ds.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.IsSystem {
		return domain.ErrSystemUserImmutable
	}
	return ds.users.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}
