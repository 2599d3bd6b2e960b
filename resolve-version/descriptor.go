package resolve_version

import (
	"encoding/json"
	"fmt"
	"github.com/mrmelon54/mc-launcher/rules"
	"strings"
)

// Descriptor is a fully merged version json.
type Descriptor struct {
	Id                 string      `json:"id"`
	Type               string      `json:"type"`
	ReleaseTime        string      `json:"releaseTime"`
	InheritsFrom       string      `json:"inheritsFrom,omitempty"`
	MainClass          string      `json:"mainClass"`
	MinecraftArguments string      `json:"minecraftArguments,omitempty"`
	Arguments          *Arguments  `json:"arguments,omitempty"`
	Libraries          []Library   `json:"libraries"`
	Downloads          Downloads   `json:"downloads"`
	AssetIndex         *AssetIndex `json:"assetIndex,omitempty"`
	Assets             string      `json:"assets,omitempty"`
	JavaVersion        *Java       `json:"javaVersion,omitempty"`
}

type Downloads struct {
	Client *Artifact `json:"client,omitempty"`
}

type Artifact struct {
	Path string `json:"path,omitempty"`
	Url  string `json:"url"`
	Sha1 string `json:"sha1,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type AssetIndex struct {
	Id        string `json:"id"`
	Url       string `json:"url"`
	Sha1      string `json:"sha1"`
	Size      int64  `json:"size"`
	TotalSize int64  `json:"totalSize"`
}

type Java struct {
	Component    string `json:"component"`
	MajorVersion int    `json:"majorVersion"`
}

type Arguments struct {
	Game []Argument `json:"game,omitempty"`
	Jvm  []Argument `json:"jvm,omitempty"`
}

// Argument is either a plain string or a {rules, value} object whose value
// is a string or a list of strings.
type Argument struct {
	Value []string
	Rules []rules.Rule
}

func (a *Argument) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		a.Value = []string{plain}
		a.Rules = nil
		return nil
	}
	var obj struct {
		Rules []rules.Rule  `json:"rules"`
		Value stringOrSlice `json:"value"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.Value = obj.Value
	a.Rules = obj.Rules
	return nil
}

func (a Argument) MarshalJSON() ([]byte, error) {
	if a.Rules == nil && len(a.Value) == 1 {
		return json.Marshal(a.Value[0])
	}
	return json.Marshal(struct {
		Rules []rules.Rule `json:"rules"`
		Value []string     `json:"value"`
	}{a.Rules, a.Value})
}

type stringOrSlice []string

func (s *stringOrSlice) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type Library struct {
	Name      string            `json:"name"`
	Url       string            `json:"url,omitempty"`
	Rules     []rules.Rule      `json:"rules,omitempty"`
	Downloads *LibraryDownloads `json:"downloads,omitempty"`
	Natives   map[string]string `json:"natives,omitempty"`
	Extract   *Extract          `json:"extract,omitempty"`
}

type LibraryDownloads struct {
	Artifact    *Artifact           `json:"artifact,omitempty"`
	Classifiers map[string]Artifact `json:"classifiers,omitempty"`
}

type Extract struct {
	Exclude []string `json:"exclude,omitempty"`
}

// NativeClassifier returns the natives classifier for the platform, with
// ${arch} expanded, or false when the library has no natives for it.
func (l Library) NativeClassifier(p rules.Platform) (string, bool) {
	c, ok := l.Natives[p.Name]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(c, "${arch}", p.Bits()), true
}

// Artifact returns the main jar of the library. Descriptors without an
// explicit download entry fall back to the maven layout below baseUrl
// (or the library's own url).
func (l Library) Artifact(baseUrl string) (Artifact, error) {
	if l.Downloads != nil && l.Downloads.Artifact != nil {
		a := *l.Downloads.Artifact
		if a.Path == "" {
			p, err := MavenPath(l.Name, "")
			if err != nil {
				return Artifact{}, err
			}
			a.Path = p
		}
		return a, nil
	}
	return l.mavenArtifact(baseUrl, "")
}

// HasArtifact is false for legacy natives-only entries which only ship
// classifier jars.
func (l Library) HasArtifact() bool {
	if l.Downloads != nil && l.Downloads.Artifact != nil {
		return true
	}
	return len(l.Natives) == 0
}

// ClassifierArtifact returns the jar for a classifier such as
// natives-linux.
func (l Library) ClassifierArtifact(baseUrl, classifier string) (Artifact, error) {
	if l.Downloads != nil {
		if a, ok := l.Downloads.Classifiers[classifier]; ok {
			if a.Path == "" {
				p, err := MavenPath(l.Name, classifier)
				if err != nil {
					return Artifact{}, err
				}
				a.Path = p
			}
			return a, nil
		}
	}
	return l.mavenArtifact(baseUrl, classifier)
}

func (l Library) mavenArtifact(baseUrl, classifier string) (Artifact, error) {
	p, err := MavenPath(l.Name, classifier)
	if err != nil {
		return Artifact{}, err
	}
	if l.Url != "" {
		baseUrl = l.Url
	}
	if !strings.HasSuffix(baseUrl, "/") {
		baseUrl += "/"
	}
	return Artifact{Path: p, Url: baseUrl + p}, nil
}

// MavenPath converts group:artifact:version[:classifier][@ext] into the
// repository relative path. A classifier argument overrides the one in the
// name.
func MavenPath(name, classifier string) (string, error) {
	ext := "jar"
	if n, e, ok := strings.Cut(name, "@"); ok {
		name, ext = n, e
	}
	parts := strings.Split(name, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return "", fmt.Errorf("invalid library name %q", name)
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	if classifier == "" && len(parts) == 4 {
		classifier = parts[3]
	}
	file := artifact + "-" + version
	if classifier != "" {
		file += "-" + classifier
	}
	return strings.ReplaceAll(group, ".", "/") + "/" + artifact + "/" + version + "/" + file + "." + ext, nil
}
