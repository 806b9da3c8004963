package fallback

import (
	"bufio"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
)

// hookSite resolves the definition site of hook's DeepCopy method.
// Best-effort: returns ("", 0) when the method cannot be resolved.
func hookSite(hook any) (file string, line int) {
	if hook == nil {
		return "", 0
	}
	rt := reflect.TypeOf(hook)
	mt, ok := rt.MethodByName("DeepCopy")
	if !ok || mt.Func.Kind() != reflect.Func {
		return "", 0
	}
	pc := mt.Func.Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return "", 0
	}
	return f.FileLine(pc)
}

// sourceLine reads the given line of file, trimmed. Best-effort: any
// failure returns "".
func sourceLine(file string, line int) string {
	if file == "" || line <= 0 {
		return ""
	}
	f, err := os.Open(file)
	if err != nil {
		return ""
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		if n == line {
			return strings.TrimSpace(sc.Text())
		}
	}
	return ""
}

// RenderDiagnostic formats the one-time remediation warning. Pure
// function of its inputs so the rendering is testable.
func RenderDiagnostic(hookName, file string, line int, src, errMsg string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "deep copy of %s fell back to a plain-mapping registry: %s\n", hookName, errMsg)
	if file != "" && line > 0 {
		fmt.Fprintf(&b, "  hook defined at %s:%d\n", file, line)
		if src != "" {
			fmt.Fprintf(&b, "    %s\n", src)
		}
	}
	b.WriteString("The hook treated the opaque registry handle as a plain map. " +
		"One-line fix: accept the handle opaquely and pass it through deep.CopyWith " +
		"(the *memo.Memo handle already supports mapping-style reads and writes).\n")
	fmt.Fprintf(&b, "Set %s=<message suffix> to silence this warning, or %s=1 to make the original error fatal.",
		EnvIgnoreHookErrors, EnvNoFallback)
	return b.String()
}
