package models

import "errors"

var ErrProductNotFound = errors.New("product not found")
