package launcher

import (
	mc_launcher "github.com/mrmelon54/mc-launcher"
	launch_args "github.com/mrmelon54/mc-launcher/launch-args"
	resolve_version "github.com/mrmelon54/mc-launcher/resolve-version"
	"os"
	"strings"
)

// BuildCommand assembles the process argv: java binary, JVM arguments,
// instance JVM arguments, main class, game arguments and finally the
// instance game arguments.
func BuildCommand(b *launch_args.Builder, desc *resolve_version.Descriptor, inst *mc_launcher.Instance, nativesDir string, classpath []string) []string {
	java := inst.JavaLocation
	if java == "" {
		java = "java"
	}
	argv := []string{java}

	jvm, ok := b.Jvm(desc)
	if !ok {
		jvm = []string{
			"-Djava.library.path=" + nativesDir,
			"-cp", strings.Join(classpath, string(os.PathListSeparator)),
		}
	}
	argv = append(argv, jvm...)
	argv = append(argv, inst.JvmArgs...)
	argv = append(argv, desc.MainClass)
	argv = append(argv, b.Game(desc)...)
	return append(argv, inst.ExtraGameArgs...)
}

// escapeCommand renders argv for logging, quoting arguments containing
// spaces and hiding the access token.
func escapeCommand(argv []string, secret string) string {
	var sb strings.Builder
	for i, a := range argv {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if secret != "" && secret != mc_launcher.OfflineAccessToken {
			a = strings.ReplaceAll(a, secret, "********")
		}
		if strings.ContainsRune(a, ' ') {
			sb.WriteByte('"')
			sb.WriteString(a)
			sb.WriteByte('"')
			continue
		}
		sb.WriteString(a)
	}
	return sb.String()
}
