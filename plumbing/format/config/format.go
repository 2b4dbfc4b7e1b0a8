package config

// RepositoryFormatVersion is the core.repositoryformatversion value, as
// defined at https://git-scm.com/docs/repository-version.
type RepositoryFormatVersion string

const (
	// Version0 is the format used by every repository that defines no
	// extensions.* keys.
	Version0 RepositoryFormatVersion = "0"

	// Version1 additionally requires readers to understand every key
	// under the extensions section; an unknown extensions.* key or an
	// unsupported value must abort the operation.
	Version1 RepositoryFormatVersion = "1"

	DefaultRepositoryFormatVersion = Version0
)
