package config

const (
	defaultWorkspaceDir         = "~/.local/share/subgen/temp"
	defaultModelsDir            = "~/.local/share/subgen/models"
	defaultStateDir             = "~/.local/share/subgen/state"
	defaultSeparationModelsDir  = "~/.local/share/subgen/models/uvr5_weights"
	defaultModelName            = "large-v2"
	defaultDevice               = "cuda"
	defaultModelPrefix          = "faster-whisper"
	defaultComputeType          = "auto"
	defaultLanguage             = "ja"
	defaultMinSilenceDurationMs = 500
	defaultSplitMethod          = "modest"
	defaultMaxLineWidth         = 42
	defaultSampleRate           = 44000
	defaultProvider             = "none"
	defaultTargetLanguage       = "zh"
	defaultChatURL              = "https://api.openai.com/v1"
	defaultChatModelName        = "gpt-4-turbo"
	defaultTencentRegion        = "ap-guangzhou"
	defaultTranslationTimeout   = 30
	defaultFFmpeg               = "ffmpeg"
	defaultFFprobe              = "ffprobe"
	defaultUVX                  = "uvx"
	defaultWhisperPackage       = "whisper-ctranslate2"
	defaultSeparatorPackage     = "audio-separator"
	defaultNotifyTimeout        = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// DefaultSeparationModels lists the well-known separation weights tried when
// no local weight file loads.
var DefaultSeparationModels = []string{
	"UVR_MDXNET_Main.onnx",
	"HP2_all_vocals.pth",
	"5_HP-Karaoke-UVR.pth",
	"VR-DeEchoNormal.pth",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			ModelsDir:    defaultModelsDir,
			StateDir:     defaultStateDir,
		},
		Transcription: Transcription{
			ModelName:            defaultModelName,
			Device:               defaultDevice,
			ModelPrefix:          defaultModelPrefix,
			ComputeType:          defaultComputeType,
			Language:             defaultLanguage,
			MinSilenceDurationMs: defaultMinSilenceDurationMs,
			SplitMethod:          defaultSplitMethod,
			MaxLineWidth:         defaultMaxLineWidth,
		},
		Separation: Separation{
			ModelsDir:     defaultSeparationModelsDir,
			SampleRate:    defaultSampleRate,
			DefaultModels: append([]string(nil), DefaultSeparationModels...),
		},
		Translation: Translation{
			Provider:       defaultProvider,
			TargetLanguage: defaultTargetLanguage,
			ChatURL:        defaultChatURL,
			ChatModelName:  defaultChatModelName,
			TencentRegion:  defaultTencentRegion,
			TimeoutSeconds: defaultTranslationTimeout,
		},
		Output: Output{
			RenderVideo: true,
		},
		Tools: Tools{
			FFmpeg:           defaultFFmpeg,
			FFprobe:          defaultFFprobe,
			UVX:              defaultUVX,
			WhisperPackage:   defaultWhisperPackage,
			SeparatorPackage: defaultSeparatorPackage,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
