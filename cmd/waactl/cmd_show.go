// cmd_show.go - waactl show: load a dir-file and print its tree
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

	"github.com/opencoff/go-utils"
	waa "github.com/opencoff/go-waa"
)

func cmdShow(sess *waa.Session, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show: expected exactly one path")
	}
	path := args[0]

	store := waa.NewStore(sess, waa.AreaWAA)
	dirPath, err := store.Path(path, "dir")
	if err != nil {
		return err
	}

	root, err := waa.Load(dirPath, path, sess)
	if err != nil {
		return err
	}

	root.SelectAll()
	return waa.DoSortedTree(root, func(e *waa.Entry) error {
		fmt.Printf("%8s  %s  %s\n", utils.HumanizeSize(uint64(e.Size)), e.Type, e.Path())
		return nil
	})
}
