// cmd_sync.go - waactl sync: fresh scan (or merge-update) + Save
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
	"fmt"

	waa "github.com/opencoff/go-waa"
)

func cmdSync(sess *waa.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("sync: expected exactly one path")
	}
	path := args[0]
	sess.Root = path

	store := waa.NewStore(sess, waa.AreaWAA)
	dirPath, err := store.Path(path, "dir")
	if err != nil {
		return err
	}

	root, loadErr := waa.Load(dirPath, path, sess)
	if loadErr == nil {
		if err := waa.UpdateTree(root, path, sess, nil); err != nil {
			return err
		}
		waa.PruneDeleted(root)
	} else {
		root, err = waa.InitialScan(path, sess, nil)
		if err != nil {
			return err
		}
	}

	h, err := store.Open(path, "dir", true)
	if err != nil {
		return err
	}
	defer h.Abort()

	if err := waa.Save(root, h, sess); err != nil {
		return err
	}
	if err := h.Close(); err != nil {
		return err
	}

	fmt.Printf("synced %s (%d entries)\n", path, root.EntryCount+1)
	return nil
}
