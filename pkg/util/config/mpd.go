package config

// Mpd holds info required to set a media pool daemon.
type Mpd struct {
	// ID is the uuid of the media pool daemon.
	ID string

	// ServerAddr is the address of the media pool daemon.
	ServerAddr string
	// ServerPort is the port of the media pool daemon.
	ServerPort string

	// WorkDir is a working directory of the mpd.
	WorkDir string

	// Pool config.
	Pool Pool
	// Security config.
	Security Security

	// LogLocation is the file path of mpd logging.
	// Default output path is stderr.
	LogLocation string
}
