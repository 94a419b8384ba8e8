package dashboard

import "errors"

var ErrUnknownRole = errors.New("no dashboard for this role")
