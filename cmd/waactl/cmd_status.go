// cmd_status.go - waactl status: base discovery + partial update +
// print-only action dispatch
//
// (c) 2024- go-waa contributors
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

package main

import (
	"errors"
	"fmt"

	waa "github.com/opencoff/go-waa"
)

func cmdStatus(sess *waa.Session, args []string) error {
	store := waa.NewStore(sess, waa.AreaWAA)

	base, rel, err := waa.FindCommonBase(store, args)
	if err != nil && !errors.Is(err, waa.ErrNotFound) {
		return err
	}
	sess.Root = base

	dirPath, err := store.Path(base, "dir")
	if err != nil {
		return err
	}

	root, loadErr := waa.Load(dirPath, base, sess)
	if loadErr != nil {
		root, err = waa.InitialScan(base, sess, nil)
		if err != nil {
			return err
		}
	}

	printAction := &waa.Action{
		Callback: func(e *waa.Entry) error {
			if e.Status != 0 {
				fmt.Printf("%-14s %s\n", e.Status, e.Path())
			}
			return nil
		},
	}

	if loadErr == nil {
		if err := waa.UpdateTreeArgs(root, base, sess, printAction, rel); err != nil {
			return err
		}
	}

	return nil
}
