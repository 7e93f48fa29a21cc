package git

import (
	"path/filepath"
	"strings"
)

var languageByExt = map[string]string{
	"ts": "typescript", "tsx": "tsx", "js": "javascript", "jsx": "jsx",
	"py": "python", "rb": "ruby", "go": "go", "rs": "rust",
	"java": "java", "kt": "kotlin", "swift": "swift",
	"css": "css", "scss": "scss", "less": "less", "html": "html",
	"vue": "vue", "svelte": "svelte",
	"json": "json", "yaml": "yaml", "yml": "yaml", "toml": "toml",
	"md": "markdown", "mdx": "mdx", "sql": "sql",
	"sh": "bash", "bash": "bash", "zsh": "bash", "fish": "fish", "ps1": "powershell",
	"c": "c", "h": "c", "cpp": "cpp", "hpp": "cpp", "cs": "csharp",
	"php": "php", "r": "r", "scala": "scala", "lua": "lua", "perl": "perl",
	"ex": "elixir", "exs": "elixir", "erl": "erlang", "hs": "haskell",
	"clj": "clojure", "ml": "ocaml", "fs": "fsharp", "nim": "nim", "zig": "zig",
	"v": "v", "dart": "dart", "graphql": "graphql", "gql": "graphql",
	"proto": "protobuf", "dockerfile": "dockerfile", "makefile": "makefile",
	"cmake": "cmake", "nginx": "nginx", "xml": "xml", "svg": "xml",
	"ini": "ini", "env": "dotenv",
}

// DetectLanguage maps a file path to a syntax-highlighting language name.
// Files without an extension are matched by name, so "Makefile" and
// "Dockerfile" are recognized. Unknown files are "plaintext".
func DetectLanguage(path string) string {
	name := strings.ToLower(filepath.Base(path))
	ext := name
	if i := strings.LastIndex(name, "."); i >= 0 {
		ext = name[i+1:]
	}
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "plaintext"
}
