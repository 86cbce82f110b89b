package lifecycle

// Route targets for the redirect guard.
const (
	PathLogin = "/login"
	PathDash  = "/dash"
)

// Navigator is the surface's routing hook. Replace swaps the current route
// without growing history, so back navigation never returns to a page the
// user no longer belongs on. The manager invokes a Navigator only from its
// own goroutine, so implementations need not be safe for concurrent use.
type Navigator interface {
	CurrentPath() string
	Replace(path string)
}

// NopNavigator ignores all navigation. Useful for headless callers.
type NopNavigator struct{}

func (NopNavigator) CurrentPath() string { return "" }
func (NopNavigator) Replace(string)      {}

// publicPath reports whether path belongs to the signed-out area.
func publicPath(path string) bool {
	switch path {
	case "", "/", PathLogin, "/signup":
		return true
	}
	return false
}
