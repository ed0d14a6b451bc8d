package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	er "github.com/mailroomhq/mailroom/internal/errors"
)

// A message ref is "{account_id}:{folder}:{uid}". Account ids never contain
// the delimiter; the folder segment is free-form otherwise, so parsing caps
// the split at three parts and the remainder after the second delimiter is
// the uid field.

// EncodeMessageRef builds the stable address of a message on the server.
func EncodeMessageRef(accountID, folder string, uid uint32) string {
	return fmt.Sprintf("%s:%s:%d", accountID, folder, uid)
}

// ParseMessageRef splits a message ref into its parts. Anything that is not
// exactly three segments with a numeric uid is rejected.
func ParseMessageRef(ref string) (accountID, folder string, uid uint32, err error) {
	parts := strings.SplitN(ref, ":", 3)
	if len(parts) != 3 {
		return "", "", 0, errors.Wrapf(er.ErrInvalidAddress, "ref %q", ref)
	}
	n, parseErr := strconv.ParseUint(parts[2], 10, 32)
	if parseErr != nil {
		return "", "", 0, errors.Wrapf(er.ErrInvalidAddress, "ref %q has non-numeric uid", ref)
	}
	return parts[0], parts[1], uint32(n), nil
}
