package main

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// staticRoot finds ui/static relative to the working directory or, failing that, the module root.
func staticRoot() (string, error) {
	fileRoot := path.Join(".", "ui", "static")
	if _, err := os.Stat(fileRoot); os.IsNotExist(err) {
		var dir string
		if dir, err = findModuleDir(); err != nil {
			return "", fmt.Errorf("findModuleDir: %w", err)
		}
		fileRoot = path.Join(dir, "ui", "static")
	}
	stat, err := os.Stat(fileRoot)
	if err != nil || !stat.IsDir() {
		return "", fmt.Errorf("file server root %s does not exist or is not a directory", fileRoot)
	}
	return fileRoot, nil
}

// fileServerHandler serves ui/static and renders the not found page for everything else.
func (app *application) fileServerHandler() (http.Handler, error) {
	fileRoot, err := staticRoot()
	if err != nil {
		return nil, err
	}
	static := app.logAndTraceRequest(secureHeaders(cacheForever(http.FileServer(http.Dir(fileRoot)))))

	notFound := noCache(app.sessionManager.LoadAndSave(
		app.authenticate(app.logAndTraceRequest(secureHeaders(commonContext(http.HandlerFunc(app.notFound)))))))

	serve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cleanPath := filepath.Clean(r.URL.Path)
		if strings.Contains(cleanPath, "..") || strings.HasSuffix(r.URL.Path, "/") {
			notFound.ServeHTTP(w, r)
			return
		}
		if stat, statErr := os.Stat(filepath.Join(fileRoot, cleanPath)); statErr != nil || stat.IsDir() {
			notFound.ServeHTTP(w, r)
			return
		}
		static.ServeHTTP(w, r)
	})

	return app.recoverPanic(serve), nil
}
