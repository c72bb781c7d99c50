package twitter

import (
	"fmt"
	"time"
)

// consolidateMedia merges entities.media with extended_entities.media.
// Extended records replace same-id entries in place; new ids are appended.
func consolidateMedia(base *tweetLegacy) ([]Media, error) {
	var out []Media
	index := make(map[uint64]int)

	add := func(list []rawMedia) error {
		for i := range list {
			m, err := convertMedia(&list[i])
			if err != nil {
				return err
			}
			if at, ok := index[m.ID]; ok {
				out[at] = m
				continue
			}
			index[m.ID] = len(out)
			out = append(out, m)
		}
		return nil
	}

	if err := add(base.Entities.Media); err != nil {
		return nil, err
	}
	if err := add(base.ExtendedEntities.Media); err != nil {
		return nil, err
	}
	return out, nil
}

func convertMedia(rm *rawMedia) (Media, error) {
	id, err := ParseID(rm.IDStr)
	if err != nil {
		return Media{}, fmt.Errorf("media id: %w", err)
	}
	m := Media{
		ID:          id,
		Type:        MediaType(rm.Type),
		URL:         rm.MediaURLHTTPS,
		ShortURL:    rm.URL,
		DisplayURL:  rm.DisplayURL,
		ExpandedURL: rm.ExpandedURL,
		Width:       rm.OriginalInfo.Width,
		Height:      rm.OriginalInfo.Height,
		AltText:     rm.ExtAltText,
	}

	switch m.Type {
	case MediaPhoto:
		return m, nil
	case MediaVideo, MediaAnimatedGIF:
		// Animated GIFs are served as looping mp4 videos.
		m.PreviewURL = m.URL
		if rm.VideoInfo == nil {
			return m, nil
		}
		vi := &VideoInfo{
			Duration: time.Duration(rm.VideoInfo.DurationMillis) * time.Millisecond,
		}
		if len(rm.VideoInfo.AspectRatio) == 2 {
			vi.AspectRatio = [2]int{rm.VideoInfo.AspectRatio[0], rm.VideoInfo.AspectRatio[1]}
		}
		for _, v := range rm.VideoInfo.Variants {
			bitrate := int64(-1)
			if v.Bitrate != nil {
				bitrate = *v.Bitrate
			}
			vi.Variants = append(vi.Variants, VideoVariant{
				Bitrate:     bitrate,
				ContentType: v.ContentType,
				URL:         v.URL,
			})
		}
		m.Video = vi
		if len(vi.Variants) > 0 {
			m.ExpandedURL = vi.Variants[0].URL
		}
		return m, nil
	}
	return Media{}, fmt.Errorf("%w: %q (media %s)", ErrUnknownMediaType, rm.Type, rm.IDStr)
}
