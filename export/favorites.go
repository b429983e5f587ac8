package export

import (
	"bufio"
	"errors"
	"fmt"
	"html"
	"os"
	"strings"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/content"
)

// Favorites writes favorite places as a Netscape style bookmark file. Every
// cabinet folder becomes a nested <dl> list.
type Favorites struct {
	path   string
	file   *os.File
	w      *bufio.Writer
	indent string
}

// NewFavorites returns a bookmark exporter writing to path.
func NewFavorites(path string) *Favorites {
	return &Favorites{path: path}
}

func (f *Favorites) Exportable(env *cabinet.Record) bool {
	return env != nil && env.Type == cabinet.FavoriteEnvelope && env.Pointers.Data != cabinet.None
}

func (f *Favorites) Open() error {
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("create bookmarks: %w", err)
	}
	f.file = file
	f.w = bufio.NewWriter(file)
	f.indent = ""
	f.println("<html>")
	f.println("<head>")
	f.println("<title>Favorite Places</title>")
	f.println("</head>")
	f.println("<body>")
	f.println("<dl><p>")
	return nil
}

func (f *Favorites) OpenFolder(folder *cabinet.Record) error {
	f.indent += "  "
	f.println(f.indent + "<dt><h3>" + html.EscapeString(folder.Label()) + "</h3>")
	f.println(f.indent + "<dl><p>")
	return nil
}

func (f *Favorites) Export(env, data *cabinet.Record) error {
	fav := content.ParseFavorite(data.Content())
	label := fav.URL
	if env != nil && env.Label() != "" {
		label = env.Label()
	}
	f.println(f.indent + "  <dt><a href='" + html.EscapeString(fav.URL) + "'>" + html.EscapeString(label) + "</a>")
	return nil
}

func (f *Favorites) CloseFolder(*cabinet.Record) error {
	f.println(f.indent + "</p></dl>")
	f.indent = strings.TrimSuffix(f.indent, "  ")
	return nil
}

func (f *Favorites) Close() error {
	if f.file == nil {
		return nil
	}
	f.println("</p></dl>")
	f.println("</body>")
	f.println("</html>")

	err := errors.Join(f.w.Flush(), f.file.Close())
	f.file, f.w = nil, nil
	if err != nil {
		return fmt.Errorf("close bookmarks: %w", err)
	}
	return nil
}

// println ignores write errors; bufio keeps the first one and Flush reports it.
func (f *Favorites) println(line string) {
	f.w.WriteString(line)
	f.w.WriteByte('\n')
}
