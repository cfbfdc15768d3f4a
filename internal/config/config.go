package config

// Config is the full persisted state of the archiver. One file per
// invocation: loaded fresh, mutated in memory, saved once at the end.
type Config struct {
	ApiKey     string               `json:"ApiKey"`
	ApiUser    string               `json:"ApiUser"`
	Containers map[string]Container `json:"Containers"`

	BaseURL     string `json:"BaseURL"`
	FetchURL    string `json:"FetchURL"`
	UpdateURL   string `json:"UpdateURL"`
	VersionURL  string `json:"VersionURL"`
	DownloadURL string `json:"DownloadURL"`

	// FetchSleep is the pacing delay in seconds between fetches when
	// processing multiple containers. The server is rate-sensitive, so
	// values above 3 are strongly recommended.
	FetchSleep int `json:"FetchSleep"`

	// Default is the template new containers are created from. Fields
	// missing from older on-disk containers are also backfilled from it.
	Default Container `json:"Default"`

	QBitClients   map[string]QBitConfig   `json:"QBitClients,omitempty"`
	RTorrClients  map[string]RTorrConfig  `json:"RTorrClients,omitempty"`
	DelugeClients map[string]DelugeConfig `json:"DelugeClients,omitempty"`
}

// Container is one allocated remote archival slot. The server decides
// what content goes into it; we only control size and local placement.
type Container struct {
	// Size is the total storage allocation for this container.
	// The server assigns torrents until this total size is reached.
	Size string `json:"Size"`
	// MaxStalled caps partial/stalled torrents before new fetches pause.
	// 0 means unlimited.
	MaxStalled int `json:"MaxStalled"`
	// AfterFetchExec is a command run after each successful download.
	// $path expands to the downloaded file, $name to its base name.
	// Segments joined with && run as separate commands, no shell involved.
	AfterFetchExec string `json:"AfterFetchExec"`
	// WatchDirectory is where new .torrent files are placed. $name
	// expands to the container name, resolved once at load time.
	WatchDirectory string `json:"WatchDirectory"`
	// Client optionally names a configured torrent client to deliver to
	// instead of the watch directory.
	Client string `json:"Client,omitempty"`
	// ContainerID is assigned by the server on the first successful
	// fetch and kept for later bookkeeping.
	ContainerID *int `json:"ContainerID,omitempty"`
}

// Clone returns an independent copy. Containers are handed around by
// value everywhere, so only the ContainerID pointer needs duplicating.
func (c Container) Clone() Container {
	out := c
	if c.ContainerID != nil {
		id := *c.ContainerID
		out.ContainerID = &id
	}
	return out
}

type QBitConfig struct {
	URL       string `json:"URL"`
	Username  string `json:"Username"`
	Password  string `json:"Password"`
	BasicUser string `json:"BasicUser,omitempty"`
	BasicPass string `json:"BasicPass,omitempty"`
}

type RTorrConfig struct {
	URL       string `json:"URL"`
	BasicUser string `json:"BasicUser,omitempty"`
	BasicPass string `json:"BasicPass,omitempty"`
}

type DelugeConfig struct {
	Host     string `json:"Host"`
	Port     int    `json:"Port"`
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// DefaultConfig returns an independent copy of the compiled-in template.
// Callers may mutate the result freely.
func DefaultConfig() *Config {
	return &Config{
		Containers:  map[string]Container{},
		BaseURL:     "https://passthepopcorn.me",
		FetchURL:    "archive.php?action=fetch",
		UpdateURL:   "archive.php?action=script",
		VersionURL:  "archive.php?action=scriptver",
		DownloadURL: "torrents.php?action=download",
		FetchSleep:  5,
		Default: Container{
			Size:           "500G",
			MaxStalled:     0,
			AfterFetchExec: "",
			WatchDirectory: "/tmp/$name",
		},
	}
}
