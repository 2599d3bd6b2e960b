package launch_args

import (
	mc_launcher "github.com/mrmelon54/mc-launcher"
	resolve_version "github.com/mrmelon54/mc-launcher/resolve-version"
	"github.com/mrmelon54/mc-launcher/rules"
	"os"
	"strconv"
	"strings"
)

const (
	LauncherName    = "mc-launcher"
	FeatureDemo     = "is_demo_user"
	FeatureCustomRS = "has_custom_resolution"
)

// LauncherVersion is reported through ${launcher_version}.
var LauncherVersion = "dev"

// Params is everything the placeholder table is built from.
type Params struct {
	Account        *mc_launcher.Account
	Settings       mc_launcher.Settings
	Instance       *mc_launcher.Instance
	VersionName    string
	VersionType    string
	Classpath      []string
	NativesDir     string
	LibrariesDir   string
	AssetsRoot     string
	AssetIndexName string
	GameAssets     string
}

// Values builds the placeholder table.
func (p Params) Values() map[string]string {
	v := map[string]string{
		"version_name":        p.VersionName,
		"version_type":        p.VersionType,
		"classpath":           strings.Join(p.Classpath, string(os.PathListSeparator)),
		"classpath_separator": string(os.PathListSeparator),
		"natives_directory":   p.NativesDir,
		"library_directory":   p.LibrariesDir,
		"assets_root":         p.AssetsRoot,
		"assets_index_name":   p.AssetIndexName,
		"game_assets":         p.GameAssets,
		"resolution_width":    strconv.Itoa(p.Settings.Width),
		"resolution_height":   strconv.Itoa(p.Settings.Height),
		"clientid":            p.Settings.ClientId,
		"user_properties":     "{}",
		"launcher_name":       LauncherName,
		"launcher_version":    LauncherVersion,
	}
	if p.Instance != nil {
		v["game_directory"] = p.Instance.Location
		v["instance_icon"] = p.Instance.Icon
	}
	if a := p.Account; a != nil {
		v["auth_player_name"] = a.Name
		v["auth_uuid"] = a.Uuid
		v["auth_access_token"] = a.AccessToken()
		v["auth_session"] = a.AccessToken()
		v["user_type"] = a.UserType()
		v["auth_xuid"] = ""
		if a.Microsoft != nil {
			v["auth_xuid"] = a.Microsoft.Xuid
		}
	}
	return v
}

// Features returns the feature flags the launch settings turn on.
func Features(s mc_launcher.Settings) rules.Features {
	f := rules.NewFeatures()
	if s.Demo {
		f.Add(FeatureDemo)
	}
	if customResolution(s) {
		f.Add(FeatureCustomRS)
	}
	return f
}

func customResolution(s mc_launcher.Settings) bool {
	return s.Width > 0 && s.Height > 0
}

// Builder expands the argument templates of a descriptor.
type Builder struct {
	Evaluator rules.Evaluator
	Features  rules.Features
	Values    map[string]string
	Settings  mc_launcher.Settings
}

func NewBuilder(ev rules.Evaluator, p Params) *Builder {
	return &Builder{
		Evaluator: ev,
		Features:  Features(p.Settings),
		Values:    p.Values(),
		Settings:  p.Settings,
	}
}

// Expand emits every plain argument and every conditional argument whose
// rules allow it, substituting placeholders.
func (b *Builder) Expand(args []resolve_version.Argument) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		if !b.Evaluator.Allowed(a.Rules, b.Features) {
			continue
		}
		for _, s := range a.Value {
			out = append(out, Substitute(s, b.Values))
		}
	}
	return out
}

// Jvm returns the templated JVM arguments, or false when the descriptor
// predates structured arguments.
func (b *Builder) Jvm(desc *resolve_version.Descriptor) ([]string, bool) {
	if desc.Arguments == nil || desc.Arguments.Jvm == nil {
		return nil, false
	}
	return b.Expand(desc.Arguments.Jvm), true
}

// Game returns the game arguments. Descriptors without structured game
// arguments use the flat legacy string plus the flags derived from the
// settings.
func (b *Builder) Game(desc *resolve_version.Descriptor) []string {
	if desc.Arguments != nil && desc.Arguments.Game != nil {
		return b.Expand(desc.Arguments.Game)
	}
	tokens := SplitLegacy(desc.MinecraftArguments)
	out := make([]string, 0, len(tokens)+6)
	for _, t := range tokens {
		out = append(out, Substitute(t, b.Values))
	}
	if b.Settings.Fullscreen {
		out = append(out, "--fullscreen")
	}
	if customResolution(b.Settings) {
		out = append(out, "--width", strconv.Itoa(b.Settings.Width), "--height", strconv.Itoa(b.Settings.Height))
	}
	if b.Settings.Demo {
		out = append(out, "--demo")
	}
	return out
}
