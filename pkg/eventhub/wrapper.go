package eventhub

// WrapperType tags the cross-platform framework wrapping the SDK, recorded
// in the hub's shared state. It is settable only before Start; later
// attempts are logged and ignored.
type WrapperType string

const (
	// WrapperNone means the SDK is used directly.
	WrapperNone WrapperType = "N"

	// WrapperReactNative marks the React Native wrapper.
	WrapperReactNative WrapperType = "R"

	// WrapperFlutter marks the Flutter wrapper.
	WrapperFlutter WrapperType = "F"

	// WrapperCordova marks the Cordova wrapper.
	WrapperCordova WrapperType = "C"

	// WrapperUnity marks the Unity wrapper.
	WrapperUnity WrapperType = "U"

	// WrapperXamarin marks the Xamarin wrapper.
	WrapperXamarin WrapperType = "X"
)

// FriendlyName returns the human-readable wrapper name.
func (w WrapperType) FriendlyName() string {
	switch w {
	case WrapperReactNative:
		return "React Native"
	case WrapperFlutter:
		return "Flutter"
	case WrapperCordova:
		return "Cordova"
	case WrapperUnity:
		return "Unity"
	case WrapperXamarin:
		return "Xamarin"
	default:
		return "None"
	}
}
