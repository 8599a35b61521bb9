//go:build !unix

package flock

import "os"

// Advisory locks are not available; only the in-process lock table applies.
func tryLock(*os.File, bool) (bool, error) { return true, nil }

func unlock(*os.File) error { return nil }
