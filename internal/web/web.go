// Package web は埋め込みのHTMLページと静的アセットを提供する。
package web

import (
	"embed"
	"io/fs"
)

//go:embed pages/*.html static/*
var files embed.FS

// Pages はHTMLページのファイルシステムを返す。ルートに index.html 等が並ぶ。
func Pages() fs.FS {
	return mustSub("pages")
}

// Static は /static/ 配下で配信するアセットのファイルシステムを返す。
func Static() fs.FS {
	return mustSub("static")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
