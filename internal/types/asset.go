package types

import "time"

type Identity struct {
	Login string `yaml:"login"`
	Type  string `yaml:"type"`
}

func (i Identity) Equal(other Identity) bool {
	return i.Login == other.Login && i.Type == other.Type
}

type Asset struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Size        int64     `yaml:"size"`
	Channel     Channel   `yaml:"channel"`
	Uploader    Identity  `yaml:"uploader"`
	DownloadURL string    `yaml:"download_url,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// AssetNames returns the names of the given assets in order.
func AssetNames(assets []Asset) []string {
	names := make([]string, 0, len(assets))
	for _, asset := range assets {
		names = append(names, asset.Name)
	}
	return names
}

// AssetCleanPlan splits published assets into those still referenced by
// the build queue and those that can be deleted.
type AssetCleanPlan struct {
	Keep   []Asset `yaml:"keep"`
	Delete []Asset `yaml:"delete"`
}
